// Copyright 2020 Robotec.ai sp. z o.o. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package main

import (
	"github.com/RobotecAI/rosbag2/cli"
)

func main() {
	cli.Main()
}
