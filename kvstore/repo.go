// Package kvstore abstracts the medium session material is persisted into so
// the credential store can be moved between media without changing its
// validation logic.
package kvstore

// Repo is a string keyed, string valued persistence medium.
// Get reports ok=false for an absent key. Delete of an absent key is not an
// error. Each Set replaces the whole value held under key.
type Repo interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Discloser is implemented by media that carry security caveats the user
// should be told about.
type Discloser interface {
	Disclosures() []string
}
