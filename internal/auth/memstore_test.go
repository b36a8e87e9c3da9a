package auth

func (s *MemoryStore) unusedCodes(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, used := range s.backup[userID] {
		if !used {
			n++
		}
	}
	return n
}

func (s *MemoryStore) session(userID string) *RefreshToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.refresh[userID]; ok {
		cp := *t
		return &cp
	}
	return nil
}

