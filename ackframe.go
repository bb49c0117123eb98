// SPDX-License-Identifier: GPL-3.0-or-later

package loanwire

import (
	"fmt"
	"strings"
)

// Markers delimiting an acknowledged datagram response.
//
// They are newline-prefixed so that they are unlikely to collide
// with the report text they wrap.
const (
	AckStartMarker = "\nACK_START"
	AckEndMarker   = "\nACK_END"
)

// WrapAck returns the AckEnvelope for the given payload.
func WrapAck(payload string) []byte {
	return []byte(AckStartMarker + payload + AckEndMarker)
}

// UnwrapAck returns the payload of an AckEnvelope.
//
// A buffer counts as acknowledged only when both markers are present.
// Otherwise, this function returns an error wrapping [ErrAckFramingIncomplete]
// even though bytes were received. On success, exactly one occurrence of
// each marker is removed.
func UnwrapAck(buf []byte) (string, error) {
	s := string(buf)
	hasStart := strings.Contains(s, AckStartMarker)
	hasEnd := strings.Contains(s, AckEndMarker)
	if !hasStart || !hasEnd {
		return "", fmt.Errorf("%w: start=%v end=%v", ErrAckFramingIncomplete, hasStart, hasEnd)
	}
	s = strings.Replace(s, AckStartMarker, "", 1)
	s = strings.Replace(s, AckEndMarker, "", 1)
	return s, nil
}
