// ABOUTME: Session target URIs with explicit ownership
// ABOUTME: Owned targets run a release hook exactly once when the session ends
package audioserver

import "sync"

// Target is the URI a session plays from or records to
type Target struct {
	uri     string
	release func()
	once    *sync.Once
}

// Borrowed returns a target the caller keeps ownership of
func Borrowed(uri string) Target {
	return Target{uri: uri}
}

// Owned returns a target whose release hook runs once the session is done
// with it, e.g. to delete a temporary file
func Owned(uri string, release func()) Target {
	return Target{uri: uri, release: release, once: &sync.Once{}}
}

// URI returns the target URI
func (t Target) URI() string {
	return t.uri
}

// IsOwned reports whether the session releases the target
func (t Target) IsOwned() bool {
	return t.release != nil
}

func (t Target) done() {
	if t.release == nil {
		return
	}
	t.once.Do(t.release)
}
