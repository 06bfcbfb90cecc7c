package confidential

import "sort"

// Authorize records that principal may request decryption of h. Grants are
// monotonic; re-granting keeps the original height.
func (s *Store) Authorize(h Handle, principal string, height int64) error {
	if principal == "" {
		return ErrInvalidPrincipal.Wrap("empty principal")
	}
	if !s.Exists(h) {
		return ErrUnknownHandle.Wrapf("handle %s", h)
	}
	entries := s.st.ACL[string(h)]
	if entries == nil {
		entries = map[string]int64{}
		s.st.ACL[string(h)] = entries
	}
	if _, ok := entries[principal]; ok {
		return nil
	}
	entries[principal] = height
	s.grants = append(s.grants, Grant{Handle: h, Principal: principal, Height: height})
	return nil
}

func (s *Store) IsAuthorized(h Handle, principal string) bool {
	_, ok := s.GrantedAt(h, principal)
	return ok
}

func (s *Store) GrantedAt(h Handle, principal string) (int64, bool) {
	entries := s.st.ACL[string(h)]
	if entries == nil {
		return 0, false
	}
	height, ok := entries[principal]
	return height, ok
}

// Principals lists everyone granted on h, sorted.
func (s *Store) Principals(h Handle) []string {
	entries := s.st.ACL[string(h)]
	out := make([]string, 0, len(entries))
	for p := range entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Grants returns the ACL entries added through this Store, in order.
func (s *Store) Grants() []Grant {
	return append([]Grant(nil), s.grants...)
}
