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


package source

import "errors"

var (
	// ErrFetchFailed indicates a transcript fetch could not be completed.
	ErrFetchFailed = errors.New("transcript fetch failed")

	// ErrDeployFailed indicates a bot could not be deployed to a meeting.
	ErrDeployFailed = errors.New("bot deployment failed")

	// ErrInvalidConfig indicates the source was configured incorrectly.
	ErrInvalidConfig = errors.New("invalid source configuration")
)
