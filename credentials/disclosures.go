package credentials

import "github.com/jrsteele09/fintrack-client/kvstore"

var baseDisclosures = []string{
	"Access and refresh tokens are kept on this device; anyone who can read the storage medium can act as you until the tokens expire.",
	"Tokens are bearer credentials: whoever holds one is treated as you, no further proof is asked.",
	"Signing out removes the tokens from this device; tokens already copied elsewhere stay valid until they expire.",
}

// SecurityDisclosures lists caveats about where session material is kept.
// It always has at least one entry.
func (s *Store) SecurityDisclosures() []string {
	out := append([]string(nil), baseDisclosures...)
	if d, ok := s.repo.(kvstore.Discloser); ok {
		for _, line := range d.Disclosures() {
			if line != "" {
				out = append(out, line)
			}
		}
	}
	return out
}
