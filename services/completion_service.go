package services

import (
	"context"
	"log"
	"sync"
	"time"

	"travel-booking/internal/store"
	"travel-booking/models"
)

// CompletionService sweeps confirmed bookings whose departure date has
// passed and moves them to completed through the validated transition
// path. One goroutine handles all packages.
type CompletionService struct {
	store    store.Store
	bookings *BookingService
	interval time.Duration

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewCompletionService(st store.Store, bookingService *BookingService, interval time.Duration) *CompletionService {
	return &CompletionService{
		store:    st,
		bookings: bookingService,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (s *CompletionService) Start() {
	s.wg.Add(1)
	go s.run()
	log.Println("Completion sweeper started")
}

func (s *CompletionService) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}

func (s *CompletionService) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(context.Background())
		case <-s.stopChan:
			log.Println("Completion sweeper stopping")
			return
		}
	}
}

// SweepOnce completes every confirmed booking that departed before
// today. Individual failures are logged and skipped; the sweep
// retries them on the next tick.
func (s *CompletionService) SweepOnce(ctx context.Context) int {
	departed, err := s.store.ListConfirmedDepartedBefore(ctx, time.Now())
	if err != nil {
		log.Printf("Completion sweep failed to list bookings: %v", err)
		return 0
	}

	completed := 0
	for _, b := range departed {
		if err := s.bookings.TransitionStatus(ctx, b.ID, models.BookingCompleted); err != nil {
			log.Printf("Completion sweep skipped booking %s: %v", b.ID, err)
			continue
		}
		completed++
	}

	if completed > 0 {
		log.Printf("Completion sweep marked %d booking(s) completed", completed)
	}
	return completed
}
