package fp

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbehnke/dect-nwk/pkg/cc"
	"github.com/dbehnke/dect-nwk/pkg/database"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/mm"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// pair attaches two handsets with extensions 11 and 12
func pair(t *testing.T) (*fixture, *handset, *handset) {
	t.Helper()
	f := newFixture(t, nil)
	a := newHandset(t, f, 0x83d1e)
	b := newHandset(t, f, 0x83d1f)
	a.attach(t, f)
	b.attach(t, f)
	return f, a, b
}

func (f *fixture) records(t *testing.T) []database.CallRecord {
	t.Helper()
	recs, err := database.NewCallRecordRepository(f.db.GetDB()).GetRecent(10)
	require.NoError(t, err)
	return recs
}

func (f *fixture) waitConnected(t *testing.T) {
	t.Helper()
	ok := f.suite.WaitFor(func() bool {
		calls := f.app.Calls()
		return len(calls) == 1 && calls[0].State == CallConnected
	}, 5*time.Second, "call connected")
	require.True(t, ok)
}

func TestInternalCall(t *testing.T) {
	f, a, b := pair(t)

	call := a.dial(t, "12")
	f.waitConnected(t)

	assert.Equal(t, cc.StateActive, call.State)
	require.Len(t, b.incoming, 1)
	require.NotNil(t, b.incoming[0].CallingPartyNumber)
	assert.Equal(t, "11", string(b.incoming[0].CallingPartyNumber.Address))
	require.NotNil(t, b.incoming[0].BasicService)
	assert.Equal(t, sfmt.CallClassInternal, b.incoming[0].BasicService.Class)

	info := f.app.Calls()[0]
	assert.Equal(t, a.IPUI.String(), info.Caller)
	assert.Equal(t, b.IPUI.String(), info.Callee)
	assert.Equal(t, "12", info.Called)

	require.NoError(t, a.cc.ReleaseReq(call, sfmt.ReleaseNormal))
	f.suite.Run()

	assert.Empty(t, f.app.Calls())
	assert.Equal(t, []sfmt.ReleaseCode{sfmt.ReleaseNormal}, b.released)
	assert.Equal(t, cc.StateNull, call.State)

	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].Answered)
	assert.Equal(t, a.IPUI.String(), recs[0].CallerIPUI)
	assert.Equal(t, b.IPUI.String(), recs[0].CalleeIPUI)
	assert.Equal(t, "12", recs[0].Called)
	assert.Equal(t, "normal", recs[0].ReleaseReason)

	assert.Equal(t, uint64(1), f.metrics.GetCallsTotal())
	assert.Equal(t, uint64(1), f.metrics.GetCallsAnswered())
	assert.Zero(t, f.metrics.GetActiveCalls())

	require.NotEmpty(t, f.rec.callEvs)
	last := f.rec.callEvs[len(f.rec.callEvs)-1]
	assert.Equal(t, CallReleased, last.State)
	assert.Equal(t, "normal", last.Reason)
	require.NotEmpty(t, f.rec.calls)
	assert.Equal(t, CallReleased, f.rec.calls[len(f.rec.calls)-1].State)
}

func TestInternalCall_CalleeHangsUp(t *testing.T) {
	f, a, b := pair(t)

	a.dial(t, "12")
	f.waitConnected(t)
	require.NotEmpty(t, b.active)

	require.NoError(t, b.cc.ReleaseReq(b.active[0], sfmt.ReleaseNormal))
	f.suite.Run()

	assert.Empty(t, f.app.Calls())
	assert.Equal(t, []sfmt.ReleaseCode{sfmt.ReleaseNormal}, a.released)
	require.Len(t, f.records(t), 1)
}

func TestInternalCall_OverlapDialling(t *testing.T) {
	f, a, b := pair(t)

	call, err := a.cc.SetupReq(identity.IPUI{}, &cc.Setup{})
	require.NoError(t, err)
	f.suite.Run()
	assert.Equal(t, 1, a.setupAcks)
	require.Len(t, f.app.Calls(), 1)
	assert.Equal(t, CallDialling, f.app.Calls()[0].State)

	for _, d := range "12" {
		require.NoError(t, a.cc.InfoReq(call, &cc.Info{Keypad: &sfmt.Keypad{Info: []byte{byte(d)}}}))
		f.suite.Run()
	}
	f.waitConnected(t)
	assert.Len(t, b.incoming, 1)
	assert.Equal(t, "12", f.app.Calls()[0].Called)
}

func TestInternalCall_Ringing(t *testing.T) {
	f, a, b := pair(t)
	b.answer = false

	call := a.dial(t, "12")
	f.suite.Run()

	require.Len(t, b.incoming, 1)
	calls := f.app.Calls()
	require.Len(t, calls, 1)
	assert.NotEqual(t, CallConnected, calls[0].State)

	require.NoError(t, a.cc.ReleaseReq(call, sfmt.ReleaseNormal))
	f.suite.Run()

	assert.Empty(t, f.app.Calls())
	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Answered)
	assert.Zero(t, recs[0].Duration)
}

func TestInternalCall_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		number string
		setup  func(t *testing.T, f *fixture, b *handset)
		want   sfmt.ReleaseCode
	}{
		{name: "unknown extension", number: "99", want: sfmt.ReleaseUserUnknown},
		{name: "self", number: "11", want: sfmt.ReleaseUserBusy},
		{
			name:   "callee detached",
			number: "12",
			setup: func(t *testing.T, f *fixture, b *handset) {
				require.NoError(t, b.mm.DetachReq(b.endpoint(t), &mm.Detach{}))
				f.suite.Run()
			},
			want: sfmt.ReleaseUserDetached,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, a, b := pair(t)
			if tt.setup != nil {
				tt.setup(t, f, b)
			}

			a.dial(t, tt.number)
			f.suite.Run()

			assert.Equal(t, []sfmt.ReleaseCode{tt.want}, a.released)
			assert.Empty(t, b.incoming)
			assert.Empty(t, f.app.Calls())

			recs := f.records(t)
			require.Len(t, recs, 1)
			assert.False(t, recs[0].Answered)
			assert.Equal(t, tt.number, recs[0].Called)
			assert.Equal(t, tt.want.String(), recs[0].ReleaseReason)
		})
	}
}

func TestInternalCall_CalleeBusy(t *testing.T) {
	f, a, b := pair(t)
	c := newHandset(t, f, 0x83d20)
	c.attach(t, f)

	a.dial(t, "12")
	f.waitConnected(t)

	c.dial(t, "12")
	f.suite.Run()

	assert.Equal(t, []sfmt.ReleaseCode{sfmt.ReleaseUserBusy}, c.released)
	assert.Len(t, b.incoming, 1)
	assert.Len(t, f.app.Calls(), 1)
}

func TestCallFromUnsubscribedPortable(t *testing.T) {
	f := newFixture(t, nil)
	a := newHandset(t, f, 0x83d1e)

	a.dial(t, "12")
	f.suite.Run()

	assert.Equal(t, []sfmt.ReleaseCode{sfmt.ReleaseUnknownIdentity}, a.released)
	assert.Empty(t, f.app.Calls())
}

func TestCallTo(t *testing.T) {
	f, _, b := pair(t)

	id, err := f.app.CallTo("12")
	require.NoError(t, err)
	f.waitConnected(t)

	info := f.app.Calls()[0]
	assert.Equal(t, id, info.ID)
	assert.Equal(t, b.IPUI.String(), info.Callee)
	require.Len(t, b.incoming, 1)
	assert.Equal(t, sfmt.CallClassNormal, b.incoming[0].BasicService.Class)

	require.NoError(t, f.app.HangUp(id))
	f.suite.Run()

	assert.Empty(t, f.app.Calls())
	assert.Equal(t, []sfmt.ReleaseCode{sfmt.ReleaseNormal}, b.released)
	recs := f.records(t)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].CallerIPUI)
	assert.True(t, recs[0].Answered)

	_, err = f.app.CallTo("77")
	assert.ErrorIs(t, err, ErrUnknownPortable)
	assert.ErrorIs(t, f.app.HangUp(id), ErrUnknownCall)
}

func TestCallCommands(t *testing.T) {
	f, _, b := pair(t)

	dial := f.rec.commands["calls/dial"]
	hangup := f.rec.commands["calls/hangup"]
	require.NotNil(t, dial)
	require.NotNil(t, hangup)

	require.NoError(t, dial([]byte(`{"to":"12"}`)))
	f.waitConnected(t)

	id := f.app.Calls()[0].ID
	require.NoError(t, hangup([]byte(`{"id":`+strconv.FormatUint(id, 10)+`}`)))
	f.suite.Run()
	assert.Empty(t, f.app.Calls())
	assert.Equal(t, []sfmt.ReleaseCode{sfmt.ReleaseNormal}, b.released)

	assert.ErrorIs(t, dial([]byte(`{}`)), ErrBadCommand)
	assert.ErrorIs(t, hangup([]byte(`{"id":0}`)), ErrBadCommand)
	assert.Error(t, dial([]byte(`{"to":"77"}`)))
}
