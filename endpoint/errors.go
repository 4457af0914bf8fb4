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

package endpoint

import "errors"

// ErrUnknownRemoteId is reported to the Config.ErrorSink (the message is
// dropped, and Receive itself returns no error) when a received message's
// sender or type does not translate to a local id and isn't a reserved
// system message.
var ErrUnknownRemoteId = errors.New("endpoint: unknown remote id")

// ErrQueueOverflow is returned by Send when the outbound queue for the
// chosen class of service is full: on the reliable queue, once the context
// given to Send is done before room frees up; on the low-latency queue
// while the UDP path is up, immediately.
var ErrQueueOverflow = errors.New("endpoint: outbound queue overflow")
