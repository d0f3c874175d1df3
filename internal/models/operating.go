package models

import "github.com/lizqwerscott/ocs2-ros2/internal/dynamo"

// Hover is the operating trajectory that holds the state and applies a
// gravity-compensating input.
func Hover(u dynamo.Input) dynamo.StationaryOperating {
	return dynamo.StationaryOperating{Input: u}
}
