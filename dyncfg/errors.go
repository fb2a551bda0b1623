// Copyright 2022 The Armored Witness OS authors. All Rights Reserved.
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

package dyncfg

import (
	"errors"
	"fmt"
)

// ErrStaleNode is returned when a node handle does not match the one derived
// from the blob it is used against.
var ErrStaleNode = errors.New("node handle does not match configuration")

// StructuralError reports a blob which is not a recognizable configuration
// tree.
type StructuralError struct {
	Err error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("invalid TB_FW_CONFIG: %v", e.Err)
}

func (e *StructuralError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a missing node or property.
type NotFoundError struct {
	// Name is the compatible string or property name being looked up.
	Name string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %v", e.Name, e.Err)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// DomainError reports a property value outside of its allowed domain.
type DomainError struct {
	Name  string
	Value uint64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("invalid value for %s (%d)", e.Name, e.Value)
}

// WriteError reports a property which could not be overwritten in place.
type WriteError struct {
	Name string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("unable to write %s: %v", e.Name, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
