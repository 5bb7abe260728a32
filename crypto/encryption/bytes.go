// Copyright 2026 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package encryption

import (
	"encoding/hex"
	"fmt"
)

// Bytes is a byte string that marshals to and from JSON as a hex
// encoded string. A nil Bytes marshals as null so that an absent salt
// survives a round trip.
type Bytes []byte

// MarshalJSON marshals b as a hex encoded string.
func (b Bytes) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	dst := make([]byte, hex.EncodedLen(len(b))+2)
	hex.Encode(dst[1:], b)
	// need to supply leading/trailing double quotes.
	dst[0], dst[len(dst)-1] = '"', '"'
	return dst, nil
}

// UnmarshalJSON unmarshals a hex encoded string into b.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*b = nil
		return nil
	}
	// need to strip leading and trailing double quotes
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("encryption.Bytes is not quoted")
	}
	data = data[1 : len(data)-1]
	out := make([]byte, hex.DecodedLen(len(data)))
	if _, err := hex.Decode(out, data); err != nil {
		return err
	}
	*b = out
	return nil
}

// Clone returns a copy of b; the copy of nil is nil.
func (b Bytes) Clone() Bytes {
	if b == nil {
		return nil
	}
	return append(Bytes{}, b...)
}
