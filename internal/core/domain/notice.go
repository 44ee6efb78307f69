package domain

type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a short message shown to a participant, e.g. a failed write.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

func ErrorNotice(msg string) Notice {
	return Notice{Level: NoticeError, Message: msg}
}
