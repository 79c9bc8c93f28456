package service

import "time"

const hour = time.Hour

func testTime() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}
