// Package algo is the algorithm registry: name-keyed constructors for
// the ciphers, MACs and compression methods this core negotiates over
// SSH_MSG_KEXINIT (RFC 4253 §6.2-6.4). Key-exchange methods and host-key
// types have their own registries in packages kex and hostkey, since
// both carry substantially more behavior than a constructor function.
package algo

import "fmt"

// ErrUnknownAlgorithm is returned by a *ByName lookup for a name that
// was negotiated but that this build does not actually implement —
// which would mean a mismatch between package negotiate's preference
// list and this package's registry, not anything a remote peer can
// trigger (negotiation only ever picks from the offered list).
type ErrUnknownAlgorithm struct {
	Category string
	Name     string
}

func (e ErrUnknownAlgorithm) Error() string {
	return fmt.Sprintf("algo: unknown %s algorithm %q", e.Category, e.Name)
}
