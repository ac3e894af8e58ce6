package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"precatorios/internal/board"
)

// Store serves a board held in memory, seeded from a JSON export in
// development or set directly by tests.
type Store struct {
	mu    sync.Mutex
	board board.Board
	err   error
}

var _ board.Reader = (*Store)(nil)

func New(b board.Board) *Store {
	return &Store{board: b}
}

// NewFromFile loads a board export ({"id","name","groups","items"}). A
// missing file yields an empty board with the default groups.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(board.Board{
			ID:   "local",
			Name: "Aquisições",
			Groups: []board.Group{
				{ID: "ativas", Title: "Aquisições Ativas"},
				{ID: "finalizadas", Title: board.DefaultFinishedGroup},
			},
		}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var b board.Board
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	return New(b), nil
}

// FetchBoard returns a copy of the stored board.
func (s *Store) FetchBoard(ctx context.Context) (board.Board, error) {
	if err := ctx.Err(); err != nil {
		return board.Board{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return board.Board{}, s.err
	}
	out := s.board
	out.Groups = append([]board.Group(nil), s.board.Groups...)
	out.Items = append([]board.Item(nil), s.board.Items...)
	return out, nil
}

// SetItems replaces the board items.
func (s *Store) SetItems(items []board.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.board.Items = append([]board.Item(nil), items...)
}

// FailWith makes subsequent fetches return err until cleared with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}
