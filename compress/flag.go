// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package compress

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// ModeFlag is a pflag.Value implementation that stores a compression mode.
type ModeFlag Mode

var _ pflag.Value = (*ModeFlag)(nil)

func (mf *ModeFlag) String() string { return string(*mf) }

// Set implements pflag.Value.
func (mf *ModeFlag) Set(v string) error {
	mode, err := ParseMode(v)
	if err != nil {
		return err
	}
	*mf = ModeFlag(mode)
	return nil
}

// Type implements pflag.Value.
func (mf *ModeFlag) Type() string { return "compress.Mode" }

// Value returns the compression mode held by this flag.
func (mf ModeFlag) Value() Mode { return Mode(mf) }

// FormatFlag is a pflag.Value implementation that stores a registered
// compression format.
type FormatFlag string

var _ pflag.Value = (*FormatFlag)(nil)

func (ff *FormatFlag) String() string { return string(*ff) }

// Set implements pflag.Value.
func (ff *FormatFlag) Set(v string) error {
	if v == "" {
		*ff = ""
		return nil
	}
	if _, err := Lookup(v); err != nil {
		return errors.Errorf("unknown compression format %q (available: %s)",
			v, strings.Join(Formats(), ", "))
	}
	*ff = FormatFlag(v)
	return nil
}

// Type implements pflag.Value.
func (ff *FormatFlag) Type() string { return "compress.Format" }
