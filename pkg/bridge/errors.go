// Copyright 2025 Kadir Pekel
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

package bridge

// The closed set of error codes choose may return. Retryability is part
// of the contract: retryable failures re-install the pending action so the
// agent can correct itself without a fresh callback.
const (
	codeNoPendingAction   = "no_pending_action"
	codeMissingParam      = "missing_param"
	codeIndexOutOfRange   = "index_out_of_range"
	codeInvalidChoice     = "invalid_choice"
	codeInternalError     = "internal_error"
	codeUnknownActionType = "unknown_action_type"
)

var retryableCodes = map[string]bool{
	codeMissingParam:    true,
	codeIndexOutOfRange: true,
	codeInvalidChoice:   true,
}

// errorResult builds the standard failure envelope.
func errorResult(code, msg string) map[string]any {
	return map[string]any{
		"success":    false,
		"error":      msg,
		"error_code": code,
		"retryable":  retryableCodes[code],
	}
}
