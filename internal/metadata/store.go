package metadata

import "sync"

// Store serialises metadata writes per identity. Two jobs from the same show can
// run concurrently in one batch, so saves for one identity must not interleave;
// reads need no locking beyond the atomic-rename write discipline.
type Store struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore() *Store {
	return &Store{locks: make(map[string]*sync.Mutex)}
}

func (s *Store) identityLock(identity string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[identity]
	if !ok {
		l = &sync.Mutex{}
		s.locks[identity] = l
	}
	return l
}

func (s *Store) LoadKeyterms(path string) ([]string, error) {
	return LoadKeyterms(path)
}

func (s *Store) SaveKeyterms(identity, path string, terms []string) error {
	l := s.identityLock(identity)
	l.Lock()
	defer l.Unlock()
	return SaveKeyterms(path, terms)
}

func (s *Store) LoadSpeakerMap(path string) (map[int]string, error) {
	return LoadSpeakerMap(path)
}

func (s *Store) SaveSpeakerMap(identity, path string, m map[int]string) error {
	l := s.identityLock(identity)
	l.Lock()
	defer l.Unlock()
	return SaveSpeakerMap(path, m)
}
