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

import "errors"

// Codec-level errors, all non-fatal: the caller decides whether a Truncated
// or BadLength read should close the transport (see package conn), while
// BadPayload only ever drops the offending message.
var (
	// ErrTruncated means a read would have gone past the end of the buffer.
	ErrTruncated = errors.New("wire: truncated")
	// ErrBadLength means the framed length field is out of range.
	ErrBadLength = errors.New("wire: bad length")
	// ErrBadPayload means a typed payload failed a structural check
	// (negative/non-finite count, fixed-count mismatch, etc).
	ErrBadPayload = errors.New("wire: bad payload")
	// ErrUTF8 means a string decoder asked for text found invalid UTF-8.
	ErrUTF8 = errors.New("wire: invalid utf-8")
)
