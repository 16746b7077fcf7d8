// Package crypt verifies passwords against crypt(3)-family hashes of the
// form "$id$salt$hash" (spec.md §4.2 "Password verification contract").
//
// Supported ids: "1" (MD5-crypt), "5" (SHA-256-crypt), "6" (SHA-512-crypt).
// Legacy DES hashes (13 characters, no "$" prefix) are unconditionally
// rejected, per spec.
package crypt

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"hash"
	"strconv"
	"strings"

	"github.com/miquels/webnis/pkg/wnerrors"
)

const b64Chars = "./0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// isDESLength reports whether hash looks like a legacy 13-character DES
// crypt hash with no "$id$" prefix -- these are unconditionally rejected
// (spec.md §4.2, §8 "Boundary behaviors").
func isDESLength(hash string) bool {
	return len(hash) == 13 && !strings.HasPrefix(hash, "$")
}

func parseRounds(field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(field, "rounds="))
	if err != nil {
		return 0, err
	}
	if n < 1000 {
		n = 1000
	}
	if n > 999999999 {
		n = 999999999
	}
	return n, nil
}

// Verify checks password (already percent-decoded by the caller) against
// hash. It returns nil on a match, or a *wnerrors.WnError with code BadAuth
// on a mismatch, Unavailable on an unrecognized/malformed hash.
//
// The hash comparison step itself is constant-time with respect to the
// candidate hash bytes (spec.md §4.2).
func Verify(password, hash string) error {
	if isDESLength(hash) {
		return wnerrors.New(wnerrors.BadAuth, "DES-style password hashes are not supported")
	}
	if !strings.HasPrefix(hash, "$") {
		return wnerrors.New(wnerrors.Unavailable, "unrecognized password hash format")
	}

	fields := strings.Split(hash[1:], "$")
	if len(fields) < 3 {
		return wnerrors.New(wnerrors.Unavailable, "malformed crypt hash")
	}
	id := fields[0]
	salt := fields[1]
	want := fields[len(fields)-1]
	rounds := 5000
	if len(fields) == 4 && strings.HasPrefix(fields[1], "rounds=") {
		salt = fields[2]
		if n, err := parseRounds(fields[1]); err == nil {
			rounds = n
		}
	}

	var got string
	switch id {
	case "1":
		got = md5Crypt(password, salt)
	case "5":
		got = shaCrypt(sha256.New, sha256.Size, password, salt, rounds)
	case "6":
		got = shaCrypt(sha512.New, sha512.Size, password, salt, rounds)
	default:
		return wnerrors.New(wnerrors.Unavailable, "unsupported crypt id $"+id+"$")
	}

	gotHash := got[strings.LastIndexByte(got, '$')+1:]
	if subtle.ConstantTimeCompare([]byte(gotHash), []byte(want)) != 1 {
		return wnerrors.New(wnerrors.BadAuth, "password incorrect")
	}
	return nil
}

// VerifyPlaintext is the plaintext-compare fallback recovered from the
// original implementation (SPEC_FULL.md "Supplemented features"). It
// performs a constant-time string compare with no hashing at all. No
// configuration key enables it and the server's auth path does not call it.
func VerifyPlaintext(password, stored string) error {
	if subtle.ConstantTimeCompare([]byte(password), []byte(stored)) != 1 {
		return wnerrors.New(wnerrors.BadAuth, "password incorrect")
	}
	return nil
}

func md5Crypt(password, salt string) string {
	// Trim salt to at most 8 characters and strip any rounds parameter,
	// matching the traditional FreeBSD/Linux md5crypt algorithm.
	if i := strings.IndexByte(salt, '$'); i >= 0 {
		salt = salt[:i]
	}
	if len(salt) > 8 {
		salt = salt[:8]
	}

	h1 := md5.New()
	h1.Write([]byte(password))
	h1.Write([]byte(salt))
	h1.Write([]byte(password))
	hsum := h1.Sum(nil)

	h := md5.New()
	h.Write([]byte(password))
	h.Write([]byte("$1$"))
	h.Write([]byte(salt))
	for i, pl := len(password), 0; pl < i; pl += 16 {
		n := i - pl
		if n > 16 {
			n = 16
		}
		h.Write(hsum[:n])
	}
	for i := len(password); i != 0; i >>= 1 {
		if i&1 != 0 {
			h.Write([]byte{0})
		} else {
			h.Write([]byte(password[:1]))
		}
	}
	sum := h.Sum(nil)

	for i := 0; i < 1000; i++ {
		hh := md5.New()
		if i&1 != 0 {
			hh.Write([]byte(password))
		} else {
			hh.Write(sum)
		}
		if i%3 != 0 {
			hh.Write([]byte(salt))
		}
		if i%7 != 0 {
			hh.Write([]byte(password))
		}
		if i&1 != 0 {
			hh.Write(sum)
		} else {
			hh.Write([]byte(password))
		}
		sum = hh.Sum(nil)
	}

	out := md5Base64(sum)
	return "$1$" + salt + "$" + out
}

func md5Base64(sum []byte) string {
	var b strings.Builder
	triples := [][3]int{{0, 6, 12}, {1, 7, 13}, {2, 8, 14}, {3, 9, 15}, {4, 10, 5}}
	for _, t := range triples {
		encode3(&b, sum[t[0]], sum[t[1]], sum[t[2]], 4)
	}
	encode3(&b, 0, 0, sum[11], 2)
	return b.String()
}

func encode3(b *strings.Builder, b2, b1, b0 byte, n int) {
	v := uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
	for i := 0; i < n; i++ {
		b.WriteByte(b64Chars[v&0x3f])
		v >>= 6
	}
}

// shaCrypt implements the SHA-256/SHA-512-crypt algorithm (Drepper's
// "Unix crypt using SHA-256/SHA-512", as used for $5$/$6$ hashes).
// newHash constructs the underlying hash.Hash; size is its digest length.
func shaCrypt(newHash func() hash.Hash, size int, password, salt string, rounds int) string {
	if len(salt) > 16 {
		salt = salt[:16]
	}

	// digest_A: H(password + salt + password)
	ha := newHash()
	ha.Write([]byte(password))
	ha.Write([]byte(salt))
	ha.Write([]byte(password))
	digestA := ha.Sum(nil)

	// digest_B: H(password + salt + repeated digestA to len(password))
	hb := newHash()
	hb.Write([]byte(password))
	hb.Write([]byte(salt))
	for n := len(password); n > 0; n -= size {
		if n > size {
			hb.Write(digestA)
		} else {
			hb.Write(digestA[:n])
		}
	}
	for n := len(password); n > 0; n >>= 1 {
		if n&1 != 0 {
			hb.Write(digestA)
		} else {
			hb.Write([]byte(password))
		}
	}
	digestB := hb.Sum(nil)

	// P sequence: len(password) copies of H(password), expanded to len(password) bytes.
	hp := newHash()
	for i := 0; i < len(password); i++ {
		hp.Write([]byte(password))
	}
	pTemp := hp.Sum(nil)
	pSeq := produceBytes(pTemp, len(password), size)

	// S sequence: (16 + digestB[0]) copies of H(salt), expanded to len(salt) bytes.
	hs := newHash()
	count := 16 + int(digestB[0])
	for i := 0; i < count; i++ {
		hs.Write([]byte(salt))
	}
	sTemp := hs.Sum(nil)
	sSeq := produceBytes(sTemp, len(salt), size)

	digest := digestB
	for i := 0; i < rounds; i++ {
		hc := newHash()
		if i%2 != 0 {
			hc.Write(pSeq)
		} else {
			hc.Write(digest)
		}
		if i%3 != 0 {
			hc.Write(sSeq)
		}
		if i%7 != 0 {
			hc.Write(pSeq)
		}
		if i%2 != 0 {
			hc.Write(digest)
		} else {
			hc.Write(pSeq)
		}
		digest = hc.Sum(nil)
	}

	var b strings.Builder
	if size == sha256Size {
		encode3(&b, digest[0], digest[10], digest[20], 4)
		encode3(&b, digest[21], digest[1], digest[11], 4)
		encode3(&b, digest[12], digest[22], digest[2], 4)
		encode3(&b, digest[3], digest[13], digest[23], 4)
		encode3(&b, digest[24], digest[4], digest[14], 4)
		encode3(&b, digest[15], digest[25], digest[5], 4)
		encode3(&b, digest[6], digest[16], digest[26], 4)
		encode3(&b, digest[27], digest[7], digest[17], 4)
		encode3(&b, digest[18], digest[28], digest[8], 4)
		encode3(&b, digest[9], digest[19], digest[29], 4)
		encode3(&b, 0, digest[31], digest[30], 3)
	} else {
		encode3(&b, digest[0], digest[21], digest[42], 4)
		encode3(&b, digest[22], digest[43], digest[1], 4)
		encode3(&b, digest[44], digest[2], digest[23], 4)
		encode3(&b, digest[3], digest[24], digest[45], 4)
		encode3(&b, digest[25], digest[46], digest[4], 4)
		encode3(&b, digest[47], digest[5], digest[26], 4)
		encode3(&b, digest[6], digest[27], digest[48], 4)
		encode3(&b, digest[28], digest[49], digest[7], 4)
		encode3(&b, digest[50], digest[8], digest[29], 4)
		encode3(&b, digest[9], digest[30], digest[51], 4)
		encode3(&b, digest[31], digest[52], digest[10], 4)
		encode3(&b, digest[53], digest[11], digest[32], 4)
		encode3(&b, digest[12], digest[33], digest[54], 4)
		encode3(&b, digest[34], digest[55], digest[13], 4)
		encode3(&b, digest[56], digest[14], digest[35], 4)
		encode3(&b, digest[15], digest[36], digest[57], 4)
		encode3(&b, digest[37], digest[58], digest[16], 4)
		encode3(&b, digest[59], digest[17], digest[38], 4)
		encode3(&b, digest[18], digest[39], digest[60], 4)
		encode3(&b, digest[40], digest[61], digest[19], 4)
		encode3(&b, digest[62], digest[20], digest[41], 4)
		encode3(&b, 0, 0, digest[63], 2)
	}

	id := "5"
	if size != sha256Size {
		id = "6"
	}
	return "$" + id + "$" + salt + "$" + b.String()
}

// produceBytes repeats temp to fill exactly needed bytes.
func produceBytes(temp []byte, needed, size int) []byte {
	out := make([]byte, 0, needed)
	for len(out) < needed {
		n := needed - len(out)
		if n > size {
			n = size
		}
		out = append(out, temp[:n]...)
	}
	return out
}

const sha256Size = 32
