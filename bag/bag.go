// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package bag

import (
	"os"

	"github.com/pkg/errors"
)

// Validate validates that path contains a readable bag.
func Validate(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Wrapf(ErrBagNotFound, "%q", path)
		}
		return err
	}
	if !st.IsDir() {
		return errors.Wrapf(ErrBagNotFound, "%q is not a directory", path)
	}

	if _, err := LoadMetadata(path); err != nil {
		return err
	}
	return nil
}

// Delete deletes the bag at the specified path, including all of its splits.
func Delete(path string) error { return os.RemoveAll(path) }
