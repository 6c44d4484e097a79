/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package hypertables

import (
	"fmt"

	"github.com/go-errors/errors"
)

// ErrorKind classifies the failure modes of the public
// hypertable operations. Callers are expected to switch on
// the kind instead of unwrapping error chains.
type ErrorKind string

const (
	PermissionDenied     ErrorKind = "permission_denied"
	NotFound             ErrorKind = "not_found"
	AlreadyExists        ErrorKind = "already_exists"
	NotEmpty             ErrorKind = "not_empty"
	InvalidInterval      ErrorKind = "invalid_interval"
	IntervalTooLarge     ErrorKind = "interval_too_large"
	BackendNotConfigured ErrorKind = "backend_not_configured"
	InvalidDimension     ErrorKind = "invalid_dimension"
)

// Error is a classified hypertable operation failure. The
// embedded go-errors error carries the stack trace of the
// point of origin.
type Error struct {
	kind  ErrorKind
	cause *errors.Error
}

// NewError instantiates a new classified error with the
// given kind and message
func NewError(
	kind ErrorKind, format string, args ...any,
) *Error {

	return &Error{
		kind:  kind,
		cause: errors.Wrap(fmt.Errorf(format, args...), 1),
	}
}

// WrapError classifies an underlying error with the
// given kind
func WrapError(
	kind ErrorKind, cause error,
) *Error {

	return &Error{
		kind:  kind,
		cause: errors.Wrap(cause, 1),
	}
}

// Kind returns the error classification
func (e *Error) Kind() ErrorKind {
	return e.kind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.kind, e.cause.Error())
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the classification of an error, or the
// empty kind if the error is unclassified
func KindOf(
	err error,
) ErrorKind {

	var classified *Error
	if errors.As(err, &classified) {
		return classified.kind
	}
	return ""
}

// IsKind returns true if the error carries the given
// classification
func IsKind(
	err error, kind ErrorKind,
) bool {

	return KindOf(err) == kind
}
