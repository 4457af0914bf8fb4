/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieEncodeS4(t *testing.T) {
	c := Cookie{Major: 7, Minor: 35, LoggingMode: 0}
	got, err := c.Encode()
	require.NoError(t, err)
	want := [CookieSize]byte{
		'v', 'r', 'p', 'n', ':', ' ', 'v', 'e', 'r', '.', ' ',
		'0', '7', '.', '3', '5', ' ', ' ', '0', 0, 0, 0, 0, 0,
	}
	assert.Equal(t, want, got)
}

func TestCookieRoundTrip(t *testing.T) {
	c := Cookie{Major: 7, Minor: 35, LoggingMode: LogIncoming}
	enc, err := c.Encode()
	require.NoError(t, err)
	decoded, err := DecodeCookie(enc[:])
	require.NoError(t, err)
	assert.Equal(t, c, decoded)
}

func TestCookieCompatible(t *testing.T) {
	a := Cookie{Major: 7, Minor: 35}
	b := Cookie{Major: 7, Minor: 31}
	ok, err := a.Compatible(b)
	require.NoError(t, err)
	assert.True(t, ok, "equal major versions must be compatible regardless of minor")

	c := Cookie{Major: 8, Minor: 0}
	ok, err = a.Compatible(c)
	require.NoError(t, err)
	assert.False(t, ok, "different major versions must be incompatible")
}

func TestDecodeCookieTruncated(t *testing.T) {
	_, err := DecodeCookie(make([]byte, 10))
	assert.ErrorIs(t, err, ErrTruncated)
}

func TestDecodeCookieBadTemplate(t *testing.T) {
	bad := make([]byte, CookieSize)
	copy(bad, "not a cookie")
	_, err := DecodeCookie(bad)
	assert.ErrorIs(t, err, ErrBadPayload)
}
