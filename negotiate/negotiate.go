// Package negotiate implements RFC 4253 §7.1 algorithm negotiation:
// picking the first client-preferred name that also appears in the
// server's list, independently per algorithm category, plus the
// Preference type that holds a side's ten ordered name lists.
package negotiate

import "github.com/cvsouth/sshd-go/msg"

// Pick returns the first name in client that also appears anywhere in
// server, and true. If no name is shared, it returns ("", false).
func Pick(client, server []string) (string, bool) {
	set := make(map[string]struct{}, len(server))
	for _, s := range server {
		set[s] = struct{}{}
	}
	for _, c := range client {
		if _, ok := set[c]; ok {
			return c, true
		}
	}
	return "", false
}

// Preference holds one side's ordered algorithm name lists, in the
// same shape as SSH_MSG_KEXINIT.
type Preference struct {
	KexAlgorithms           []string
	ServerHostKeyAlgorithms []string
	EncryptionCS            []string
	EncryptionSC            []string
	MacCS                   []string
	MacSC                   []string
	CompressionCS           []string
	CompressionSC           []string
	LanguagesCS             []string
	LanguagesSC             []string
}

// ToKexInit builds a KEXINIT message body from this preference. cookie
// must be 16 random bytes; firstKexPacketFollows is almost always false
// for a server that never speculatively sends a guessed KEX packet.
func (p Preference) ToKexInit(cookie [16]byte, firstKexPacketFollows bool) *msg.KexInit {
	return &msg.KexInit{
		Cookie:                  cookie,
		KexAlgorithms:           p.KexAlgorithms,
		ServerHostKeyAlgorithms: p.ServerHostKeyAlgorithms,
		EncryptionCS:            p.EncryptionCS,
		EncryptionSC:            p.EncryptionSC,
		MacCS:                   p.MacCS,
		MacSC:                   p.MacSC,
		CompressionCS:           p.CompressionCS,
		CompressionSC:           p.CompressionSC,
		LanguagesCS:             p.LanguagesCS,
		LanguagesSC:             p.LanguagesSC,
		FirstKexPacketFollows:   firstKexPacketFollows,
	}
}

// Default returns this core's built-in algorithm preference, in
// descending order of preference within each category.
func Default() Preference {
	return Preference{
		KexAlgorithms: []string{
			"curve25519-sha256",
			"curve25519-sha256@libssh.org",
			"diffie-hellman-group14-sha256",
		},
		ServerHostKeyAlgorithms: []string{"ssh-ed25519", "ssh-rsa"},
		EncryptionCS:            []string{"aes256-ctr", "aes192-ctr", "aes128-ctr"},
		EncryptionSC:            []string{"aes256-ctr", "aes192-ctr", "aes128-ctr"},
		MacCS:                   []string{"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1"},
		MacSC:                   []string{"hmac-sha2-256", "hmac-sha2-512", "hmac-sha1"},
		CompressionCS:           []string{"none", "zlib@openssh.com", "zlib"},
		CompressionSC:           []string{"none", "zlib@openssh.com", "zlib"},
		LanguagesCS:             nil,
		LanguagesSC:             nil,
	}
}

// Result is the outcome of negotiating a client Preference against a
// server Preference, one algorithm name per category.
type Result struct {
	Kex           string
	ServerHostKey string
	EncryptionCS  string
	EncryptionSC  string
	MacCS         string
	MacSC         string
	CompressionCS string
	CompressionSC string
}

// ErrNoCommonAlgorithm is returned by Negotiate when some category has
// no algorithm in common between the two sides.
type ErrNoCommonAlgorithm struct{ Category string }

func (e ErrNoCommonAlgorithm) Error() string {
	return "negotiate: no common algorithm for " + e.Category
}

// Negotiate runs Pick across every category, treating client as the
// preference-order side (RFC 4253 §7.1: the party sending the name-lists
// that get walked in order is whoever initiates — here always the
// client's list is walked against the server's set, matching upstream
// OpenSSH behavior of honoring client preference order).
func Negotiate(client, server Preference) (Result, error) {
	var r Result
	var failed string
	pick := func(category string, c, s []string) string {
		if failed != "" {
			return ""
		}
		name, ok := Pick(c, s)
		if !ok {
			failed = category
		}
		return name
	}
	r.Kex = pick("kex_algorithms", client.KexAlgorithms, server.KexAlgorithms)
	r.ServerHostKey = pick("server_host_key_algorithms", client.ServerHostKeyAlgorithms, server.ServerHostKeyAlgorithms)
	r.EncryptionCS = pick("encryption_client_to_server", client.EncryptionCS, server.EncryptionCS)
	r.EncryptionSC = pick("encryption_server_to_client", client.EncryptionSC, server.EncryptionSC)
	r.MacCS = pick("mac_client_to_server", client.MacCS, server.MacCS)
	r.MacSC = pick("mac_server_to_client", client.MacSC, server.MacSC)
	r.CompressionCS = pick("compression_client_to_server", client.CompressionCS, server.CompressionCS)
	r.CompressionSC = pick("compression_server_to_client", client.CompressionSC, server.CompressionSC)
	if failed != "" {
		return Result{}, ErrNoCommonAlgorithm{Category: failed}
	}
	return r, nil
}
