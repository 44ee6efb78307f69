package services

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/pokeplan/internal/core/domain"
	"github.com/vncsmyrnk/pokeplan/internal/core/ports"
)

// Summarize aggregates a task's votes. Votes are read in delivery order and
// only the last vote of each user counts.
func Summarize(votes []domain.Vote) domain.VotingSummary {
	summary := domain.VotingSummary{
		Mode:  []domain.CardValue{},
		Votes: map[string]int{},
	}

	order := make([]uuid.UUID, 0, len(votes))
	latest := make(map[uuid.UUID]domain.CardValue, len(votes))
	for _, v := range votes {
		if _, seen := latest[v.UserID]; !seen {
			order = append(order, v.UserID)
		}
		latest[v.UserID] = v.Value
	}

	var sum float64
	var numeric int
	var keys []string
	firstValue := make(map[string]domain.CardValue)
	for _, userID := range order {
		value := latest[userID]
		if n, ok := value.Numeric(); ok {
			sum += n
			numeric++
		}

		key := value.Key()
		if _, seen := firstValue[key]; !seen {
			firstValue[key] = value
			keys = append(keys, key)
		}
		summary.Votes[key]++
	}

	if numeric > 0 {
		summary.Average = math.Round(sum/float64(numeric)*10) / 10
	}

	maxCount := 0
	for _, key := range keys {
		if summary.Votes[key] > maxCount {
			maxCount = summary.Votes[key]
		}
	}
	for _, key := range keys {
		if summary.Votes[key] == maxCount {
			summary.Mode = append(summary.Mode, firstValue[key])
		}
	}

	summary.Total = len(order)
	return summary
}

type summaryService struct {
	roomRepo ports.RoomRepository
	voteRepo ports.VoteRepository
}

func NewSummaryService(roomRepo ports.RoomRepository, voteRepo ports.VoteRepository) ports.SummaryService {
	return &summaryService{
		roomRepo: roomRepo,
		voteRepo: voteRepo,
	}
}

func (s *summaryService) SummarizeTask(ctx context.Context, roomID, taskID uuid.UUID) (domain.VotingSummary, error) {
	votes, err := s.voteRepo.ListByTask(ctx, roomID, taskID)
	if err != nil {
		return domain.VotingSummary{}, fmt.Errorf("failed to fetch votes: %w", err)
	}
	return Summarize(votes), nil
}

func (s *summaryService) SummarizeActiveTask(ctx context.Context, roomID uuid.UUID) (domain.VotingSummary, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return domain.VotingSummary{}, err
	}
	if !room.HasActiveTask() {
		return domain.VotingSummary{}, domain.ErrNoActiveTask
	}
	return s.SummarizeTask(ctx, roomID, *room.VotingTaskID)
}

func (s *summaryService) SummarizeRooms(ctx context.Context, roomIDs []uuid.UUID) (map[uuid.UUID]domain.VotingSummary, error) {
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		out = make(map[uuid.UUID]domain.VotingSummary, len(roomIDs))
	)
	errChan := make(chan error, len(roomIDs))

	for _, roomID := range roomIDs {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			summary, err := s.SummarizeActiveTask(ctx, id)
			if err != nil {
				errChan <- fmt.Errorf("failed to summarize room %s: %w", id, err)
				return
			}
			mu.Lock()
			out[id] = summary
			mu.Unlock()
		}(roomID)
	}

	wg.Wait()
	close(errChan)

	for err := range errChan {
		if err != nil {
			return out, err
		}
	}

	return out, nil
}
