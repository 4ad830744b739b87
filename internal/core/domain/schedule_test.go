package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleValidateFixed(t *testing.T) {
	s := &Schedule{
		Service: "wink-sync",
		Mode:    ScheduleModeFixed,
		Date:    "2026-09-01",
		Time:    "03:30",
		// A leftover cron expression from a previous mode switch must not
		// survive validation.
		CronExpr: "0 3 * * *",
	}

	require.NoError(t, s.Validate())
	assert.Empty(t, s.CronExpr)

	at, err := s.FixedAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 1, 3, 30, 0, 0, time.Local), at)
}

func TestScheduleValidateFixedMissingParts(t *testing.T) {
	s := &Schedule{Mode: ScheduleModeFixed, Date: "2026-09-01"}
	assert.ErrorIs(t, s.Validate(), ErrScheduleDateTimeRequired)

	s = &Schedule{Mode: ScheduleModeFixed, Time: "03:30"}
	assert.ErrorIs(t, s.Validate(), ErrScheduleDateTimeRequired)

	s = &Schedule{Mode: ScheduleModeFixed, Date: "not-a-date", Time: "03:30"}
	assert.Error(t, s.Validate())
}

func TestScheduleValidateCustom(t *testing.T) {
	s := &Schedule{
		Service:  "wink-sync",
		Mode:     ScheduleModeCustom,
		CronExpr: " 0 3 * * 1 ",
		Date:     "2026-09-01",
		Time:     "03:30",
	}

	require.NoError(t, s.Validate())
	assert.Equal(t, "0 3 * * 1", s.CronExpr)
	assert.Empty(t, s.Date)
	assert.Empty(t, s.Time)
}

func TestScheduleValidateCustomRejectsBadExpressions(t *testing.T) {
	s := &Schedule{Mode: ScheduleModeCustom}
	assert.ErrorIs(t, s.Validate(), ErrScheduleCronRequired)

	s = &Schedule{Mode: ScheduleModeCustom, CronExpr: "0 3 * *"}
	assert.ErrorIs(t, s.Validate(), ErrScheduleCronInvalid)

	s = &Schedule{Mode: ScheduleModeCustom, CronExpr: "0 3 * * 1 6"}
	assert.ErrorIs(t, s.Validate(), ErrScheduleCronInvalid)
}

func TestScheduleValidateUnknownMode(t *testing.T) {
	s := &Schedule{Mode: "weekly"}
	assert.ErrorIs(t, s.Validate(), ErrScheduleModeInvalid)
}
