package security

import (
	"fmt"
	"sync"
)

// Entry is a named key with the keys ZigBee derives from it.
type Entry struct {
	Name         string
	Key          Key
	TransportKey Key
	LoadKey      Key
}

// KeyRing holds the keys available for frame security, in insertion order.
type KeyRing struct {
	mu      sync.RWMutex
	cipher  BlockCipher
	entries []Entry
}

// NewKeyRing creates an empty ring deriving keys with c. A nil c selects
// the software AES cipher.
func NewKeyRing(c BlockCipher) *KeyRing {
	if c == nil {
		c = NewAESCipher()
	}
	return &KeyRing{cipher: c}
}

// Add registers key under name and derives its transport and load keys.
func (r *KeyRing) Add(key Key, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	transport, err := HashKey(r.cipher, key, KeyTransportInput)
	if err != nil {
		return fmt.Errorf("derive transport key for %s: %w", name, err)
	}
	load, err := HashKey(r.cipher, key, KeyLoadInput)
	if err != nil {
		return fmt.Errorf("derive load key for %s: %w", name, err)
	}
	r.entries = append(r.entries, Entry{Name: name, Key: key, TransportKey: transport, LoadKey: load})
	return nil
}

// AddStrings parses each string with ParseKey and registers it as
// "User {index}", index being the position in keys. Strings that do not
// parse are skipped; their errors are returned for reporting.
func (r *KeyRing) AddStrings(keys []string) (skipped []error) {
	for n, s := range keys {
		k, err := ParseKey(s)
		if err == nil {
			err = r.Add(k, fmt.Sprintf("User %d", n))
		}
		if err != nil {
			skipped = append(skipped, err)
		}
	}
	return skipped
}

// Lookup returns the entry registered under name.
func (r *KeyRing) Lookup(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a copy of the registered entries.
func (r *KeyRing) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...)
}

func (r *KeyRing) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
