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

package systemcatalog

import "time"

// RawInterval carries a user supplied chunk interval before
// resolution into canonical units. An interval is either
// absent, a plain integer already in canonical units, or a
// duration value.
type RawInterval struct {
	integer  *int64
	duration *time.Duration
}

// NoInterval returns the absent interval value
func NoInterval() RawInterval {
	return RawInterval{}
}

// IntegerInterval returns a raw interval carrying a plain
// integer value
func IntegerInterval(value int64) RawInterval {
	return RawInterval{integer: &value}
}

// DurationInterval returns a raw interval carrying a
// duration value
func DurationInterval(duration time.Duration) RawInterval {
	return RawInterval{duration: &duration}
}

// IsAbsent returns true if no interval value was supplied
func (r RawInterval) IsAbsent() bool {
	return r.integer == nil && r.duration == nil
}

// Integer returns the integer value and true if the raw
// interval carries one, otherwise present will be false
func (r RawInterval) Integer() (value int64, present bool) {
	if r.integer != nil {
		return *r.integer, true
	}
	return 0, false
}

// Duration returns the duration value and true if the raw
// interval carries one, otherwise present will be false
func (r RawInterval) Duration() (duration time.Duration, present bool) {
	if r.duration != nil {
		return *r.duration, true
	}
	return 0, false
}
