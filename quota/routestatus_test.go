package quota_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/fuel-quota/fleet"
	"github.com/warp/fuel-quota/quota"
	"github.com/warp/fuel-quota/store/memory"
)

func isOff(t *testing.T, reg *memory.Registry, code string) bool {
	t.Helper()
	checker := &quota.RouteStatusChecker{Routes: reg}
	off, err := checker.IsRouteOffOnDate(context.Background(), code, date("2026-01-10"), "V1")
	require.NoError(t, err)
	return off
}

func logEntry(id, status string) fleet.DailyLog {
	return fleet.DailyLog{ID: id, RouteID: "r1", Date: date("2026-01-10"), Plate: "V1", Status: status}
}

func TestRouteStatus_UnknownRoute_NotOff(t *testing.T) {
	assert.False(t, isOff(t, newFleet(), "NOPE"))
}

func TestRouteStatus_InactiveRoute_NotOff(t *testing.T) {
	reg := newFleet()
	reg.AddRoute(fleet.Route{ID: "r9", Code: "R9", Active: false})
	reg.AddDailyLog(fleet.DailyLog{ID: "l1", RouteID: "r9", Date: date("2026-01-10"), Plate: "V1", Status: "OFF"})

	assert.False(t, isOff(t, reg, "R9"))
}

func TestRouteStatus_NoEntries_NotOff(t *testing.T) {
	assert.False(t, isOff(t, newFleet(), "R1"))
}

func TestRouteStatus_AllOff_IsOff(t *testing.T) {
	reg := newFleet()
	reg.AddDailyLog(logEntry("l1", "OFF"))
	reg.AddDailyLog(logEntry("l2", "cancelled"))

	assert.True(t, isOff(t, reg, "R1"))
}

func TestRouteStatus_OneOnAmongOff_NotOff(t *testing.T) {
	// Conjunctive rule: every entry must be non-ON for the route to be OFF.
	reg := newFleet()
	reg.AddDailyLog(logEntry("l1", "OFF"))
	reg.AddDailyLog(logEntry("l2", " online "))
	reg.AddDailyLog(logEntry("l3", "OFF"))

	assert.False(t, isOff(t, reg, "R1"))
}

func TestRouteStatus_OnAndOff_NotOff(t *testing.T) {
	reg := newFleet()
	reg.AddDailyLog(logEntry("l1", "ON"))
	reg.AddDailyLog(logEntry("l2", "OFF"))

	assert.False(t, isOff(t, reg, "R1"))
}

func TestRouteStatus_OtherPlateOrDay_Ignored(t *testing.T) {
	reg := newFleet()
	reg.AddDailyLog(fleet.DailyLog{ID: "l1", RouteID: "r1", Date: date("2026-01-10"), Plate: "V9", Status: "OFF"})
	reg.AddDailyLog(fleet.DailyLog{ID: "l2", RouteID: "r1", Date: date("2026-01-11"), Plate: "V1", Status: "OFF"})

	assert.False(t, isOff(t, reg, "R1"))
}

func TestRouteStatus_FindRoute_CodeThenName(t *testing.T) {
	reg := newFleet()
	checker := &quota.RouteStatusChecker{Routes: reg}
	ctx := context.Background()

	byCode, err := checker.FindRoute(ctx, "R1", "ignored")
	require.NoError(t, err)
	require.NotNil(t, byCode)
	assert.Equal(t, "r1", byCode.ID)

	byName, err := checker.FindRoute(ctx, "UNKNOWN", "City Loop")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, "r1", byName.ID)

	none, err := checker.FindRoute(ctx, "", "")
	require.NoError(t, err)
	assert.Nil(t, none)
}
