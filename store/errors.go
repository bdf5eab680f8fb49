// Copyright 2025 Murmur Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package store

import "errors"

var (
	// ErrNotFound indicates that the requested utterance was not found.
	ErrNotFound = errors.New("utterance not found")

	// ErrUpsertFailed indicates a batch upsert failed as a whole.
	ErrUpsertFailed = errors.New("batch upsert failed")

	// ErrQueryFailed indicates a read or search operation failed.
	ErrQueryFailed = errors.New("store query failed")

	// ErrStoreUnavailable indicates the backend could not be reached or
	// provisioned at construction time.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrEmbedderRequired indicates an operation needs an embedder but the
	// backend was constructed without one.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrStorageClosed indicates that the storage backend is closed.
	ErrStorageClosed = errors.New("storage is closed")

	// ErrSerializationFailed indicates a serialization/deserialization failure.
	ErrSerializationFailed = errors.New("serialization failed")
)
