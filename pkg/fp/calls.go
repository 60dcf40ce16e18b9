package fp

import (
	"sort"
	"time"

	"github.com/dbehnke/dect-nwk/pkg/cc"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/mqtt"
	"github.com/dbehnke/dect-nwk/pkg/peer"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
	"github.com/dbehnke/dect-nwk/pkg/web"
)

// Call states reported to the dashboard and MQTT
const (
	CallDialling   = "dialling"
	CallProceeding = "proceeding"
	CallAlerting   = "alerting"
	CallConnected  = "connected"
	CallReleased   = "released"
)

// call is an internal call: the caller leg the portable set up and the
// callee leg this fixed part set up towards the dialled extension
type call struct {
	id     uint64
	caller *cc.Call
	callee *cc.Call

	callerIPUI identity.IPUI
	calleeIPUI identity.IPUI
	digits     string
	called     string
	state      string
	reason     sfmt.ReleaseCode

	started  time.Time
	answered time.Time

	callerDone bool
	calleeDone bool
}

func (cl *call) info() web.CallInfo {
	info := web.CallInfo{
		ID:      cl.id,
		Caller:  cl.callerIPUI.String(),
		Called:  cl.called,
		State:   cl.state,
		Started: cl.started,
	}
	if cl.callee != nil {
		info.Callee = cl.calleeIPUI.String()
	}
	return info
}

// other returns the leg opposite c, nil when it does not exist yet
func (cl *call) other(c *cc.Call) *cc.Call {
	if c == cl.caller {
		return cl.callee
	}
	return cl.caller
}

func sortCalls(calls []web.CallInfo) {
	sort.Slice(calls, func(i, j int) bool { return calls[i].ID < calls[j].ID })
}

func (a *App) ccOps() cc.Ops {
	return cc.Ops{
		SetupInd:    a.setupInd,
		CallProcInd: a.callProcInd,
		AlertInd:    a.alertInd,
		ConnectInd:  a.connectInd,
		ConnectCfm:  a.connectCfm,
		InfoInd:     a.infoInd,
		ReleaseInd:  a.releaseInd,
		ReleaseCfm:  a.releaseCfm,
	}
}

// dialled extracts the digits of a called party number or keypad IE
func dialled(number *sfmt.CalledPartyNumber, keypad *sfmt.Keypad) string {
	var digits []byte
	if number != nil {
		digits = append(digits, number.Address...)
	}
	if keypad != nil {
		digits = append(digits, keypad.Info...)
	}
	out := digits[:0]
	for _, d := range digits {
		if d >= '0' && d <= '9' || d == '*' || d == '#' {
			out = append(out, d)
		}
	}
	return string(out)
}

// setupInd takes an outgoing call of a subscribed portable. Without
// digits the portable is asked for more with SETUP-ACK.
func (a *App) setupInd(c *cc.Call, msg *cc.Setup) {
	caller, ok := c.Peer()
	if !ok {
		_ = a.cc.RejectReq(c, sfmt.ReleaseInvalidIdentity)
		return
	}
	p := a.peers.GetPeer(caller)
	if p == nil {
		a.log.Info("Call from unsubscribed portable", logger.String("ipui", caller.String()))
		_ = a.cc.RejectReq(c, sfmt.ReleaseUnknownIdentity)
		return
	}
	p.IncrementCalls()

	a.mu.Lock()
	a.nextCall++
	cl := &call{
		id:         a.nextCall,
		caller:     c,
		callerIPUI: caller,
		state:      CallDialling,
		started:    time.Now(),
	}
	a.calls[cl.id] = cl
	a.mu.Unlock()
	c.Context = cl
	if a.metrics != nil {
		a.metrics.CallStarted(cl.id)
	}

	cl.digits = dialled(msg.CalledPartyNumber, msg.Keypad)
	if cl.digits == "" || !a.routable(cl.digits) && msg.SendingComplete == nil {
		if err := a.cc.SetupAckReq(c, &cc.Progress{}); err != nil {
			a.log.Warn("Sending setup ack failed", logger.Error(err))
		}
		a.notifyCall(cl)
		return
	}
	a.route(cl)
}

// infoInd collects overlap digits on the caller leg
func (a *App) infoInd(c *cc.Call, msg *cc.Info) {
	cl, ok := c.Context.(*call)
	if !ok || c != cl.caller || cl.callee != nil || cl.state != CallDialling {
		return
	}
	cl.digits += dialled(msg.CalledPartyNumber, msg.Keypad)
	if a.routable(cl.digits) || msg.SendingComplete != nil {
		a.route(cl)
	}
}

// routable reports whether digits name a subscribed extension
func (a *App) routable(digits string) bool {
	_, err := a.portables.GetByExtension(digits)
	return err == nil
}

// route sets up the callee leg for the dialled extension. The callee is
// paged when it has no link.
func (a *App) route(cl *call) {
	a.mu.Lock()
	cl.called = cl.digits
	a.mu.Unlock()
	rec, err := a.portables.GetByExtension(cl.digits)
	if err != nil {
		a.log.Info("Unknown extension", logger.String("called", cl.digits))
		a.reject(cl, sfmt.ReleaseUserUnknown)
		return
	}
	callee, err := rec.Identity()
	if err != nil {
		a.reject(cl, sfmt.ReleaseUserUnknown)
		return
	}
	if callee == cl.callerIPUI || a.busy(callee) {
		a.reject(cl, sfmt.ReleaseUserBusy)
		return
	}
	if p := a.peers.GetPeer(callee); p == nil || p.GetState() != peer.StateAttached {
		a.reject(cl, sfmt.ReleaseUserDetached)
		return
	}

	if err := a.cc.CallProcReq(cl.caller, &cc.Progress{}); err != nil {
		a.log.Warn("Sending call proceeding failed", logger.Error(err))
	}
	setup := &cc.Setup{
		BasicService: &sfmt.BasicService{Class: sfmt.CallClassInternal, Service: sfmt.ServiceBasicSpeech},
	}
	if p := a.peers.GetPeer(cl.callerIPUI); p != nil && p.GetExtension() != "" {
		setup.CallingPartyNumber = &sfmt.CallingPartyNumber{
			NumberType: sfmt.NumberTypeSubscriber,
			Plan:       sfmt.NumberPlanPrivate,
			Address:    []byte(p.GetExtension()),
		}
	}
	leg, err := a.cc.SetupReq(callee, setup)
	if err != nil {
		a.log.Info("Callee unreachable",
			logger.String("callee", callee.String()),
			logger.Error(err))
		cl.reason = sfmt.ReleaseUserNotInRange
		a.release(cl, cl.caller, cl.reason)
		return
	}
	leg.Context = cl

	a.mu.Lock()
	cl.callee = leg
	cl.calleeIPUI = callee
	cl.state = CallProceeding
	a.mu.Unlock()
	if p := a.peers.GetPeer(callee); p != nil {
		p.IncrementCalls()
	}
	a.log.Info("Call routed",
		logger.Uint64("call", cl.id),
		logger.String("caller", cl.callerIPUI.String()),
		logger.String("callee", callee.String()),
		logger.String("called", cl.called))
	a.notifyCall(cl)
}

// busy reports whether ipui takes part in a call
func (a *App) busy(ipui identity.IPUI) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, cl := range a.calls {
		if cl.callerIPUI == ipui || cl.callee != nil && cl.calleeIPUI == ipui {
			return true
		}
	}
	return false
}

// reject refuses the caller leg before a callee leg exists
func (a *App) reject(cl *call, reason sfmt.ReleaseCode) {
	if err := a.cc.RejectReq(cl.caller, reason); err != nil {
		a.log.Debug("Sending reject failed", logger.Error(err))
	}
	cl.reason = reason
	cl.callerDone, cl.calleeDone = true, true
	a.finish(cl)
}

// release clears one leg; the call ends once both legs are gone
func (a *App) release(cl *call, leg *cc.Call, reason sfmt.ReleaseCode) {
	if leg == nil || leg.State == cc.StateNull {
		a.legDone(cl, leg)
		return
	}
	if leg.State == cc.StateReleasePending {
		return
	}
	if err := a.cc.ReleaseReq(leg, reason); err != nil {
		a.log.Debug("Release failed",
			logger.String("call", leg.String()),
			logger.Error(err))
		a.legDone(cl, leg)
	}
}

func (a *App) callProcInd(c *cc.Call, msg *cc.Progress) {
	a.log.Debug("Callee proceeding", logger.String("call", c.String()))
}

func (a *App) alertInd(c *cc.Call, msg *cc.Progress) {
	cl, ok := c.Context.(*call)
	if !ok || c != cl.callee {
		return
	}
	if cl.caller != nil {
		if err := a.cc.AlertReq(cl.caller, &cc.Progress{}); err != nil {
			a.log.Debug("Relaying alert failed", logger.Error(err))
		}
	}
	a.setState(cl, CallAlerting)
}

// connectInd answers the caller once the callee picked up. The call is
// connected when the caller acknowledges, or at once for a call the
// fixed part placed.
func (a *App) connectInd(c *cc.Call, msg *cc.Progress) {
	cl, ok := c.Context.(*call)
	if !ok || c != cl.callee {
		return
	}
	if cl.caller == nil {
		a.answered(cl)
		return
	}
	if err := a.cc.ConnectReq(cl.caller, &cc.Progress{}); err != nil {
		a.log.Warn("Connecting caller failed", logger.Error(err))
		a.release(cl, cl.callee, sfmt.ReleaseUnexpectedMessage)
		a.release(cl, cl.caller, sfmt.ReleaseUnexpectedMessage)
	}
}

func (a *App) connectCfm(c *cc.Call) {
	cl, ok := c.Context.(*call)
	if !ok || c != cl.caller {
		return
	}
	a.answered(cl)
}

func (a *App) answered(cl *call) {
	cl.answered = time.Now()
	if a.metrics != nil {
		a.metrics.CallAnswered(cl.id)
	}
	a.setState(cl, CallConnected)
}

// releaseInd clears the opposite leg of a leg the peer released
func (a *App) releaseInd(c *cc.Call, reason sfmt.ReleaseCode) {
	cl, ok := c.Context.(*call)
	if !ok {
		return
	}
	if cl.reason == sfmt.ReleaseNormal {
		cl.reason = reason
	}
	a.legDone(cl, c)
	if other := cl.other(c); other != nil {
		a.release(cl, other, reason)
	}
}

func (a *App) releaseCfm(c *cc.Call, err error) {
	cl, ok := c.Context.(*call)
	if !ok {
		return
	}
	if err != nil {
		a.log.Debug("Release ended without confirmation",
			logger.String("call", c.String()),
			logger.Error(err))
	}
	a.legDone(cl, c)
}

// legDone marks a leg cleared and ends the call after both
func (a *App) legDone(cl *call, leg *cc.Call) {
	switch {
	case leg == nil:
		cl.calleeDone = true
	case leg == cl.caller:
		cl.callerDone = true
	case leg == cl.callee:
		cl.calleeDone = true
	}
	if cl.callee == nil && cl.callerDone {
		cl.calleeDone = true
	}
	if cl.callerDone && cl.calleeDone {
		a.finish(cl)
	}
}

func (a *App) finish(cl *call) {
	a.mu.Lock()
	if _, ok := a.calls[cl.id]; !ok {
		a.mu.Unlock()
		return
	}
	delete(a.calls, cl.id)
	cl.state = CallReleased
	a.mu.Unlock()

	if a.metrics != nil {
		a.metrics.CallEnded(cl.id)
	}
	a.callLog.Record(cl, time.Now())
	a.log.Info("Call ended",
		logger.Uint64("call", cl.id),
		logger.String("reason", cl.reason.String()))
	a.notifyCall(cl)
}

func (a *App) setState(cl *call, state string) {
	a.mu.Lock()
	cl.state = state
	a.mu.Unlock()
	a.notifyCall(cl)
}

func (a *App) notifyCall(cl *call) {
	a.mu.RLock()
	info := cl.info()
	a.mu.RUnlock()
	if a.events != nil {
		a.events.BroadcastCall(info)
	}
	if a.pub == nil {
		return
	}
	ev := mqtt.CallEvent{
		CallID:    info.ID,
		Caller:    info.Caller,
		Callee:    info.Callee,
		Called:    info.Called,
		State:     info.State,
		Timestamp: time.Now(),
	}
	if info.State == CallReleased {
		ev.Reason = cl.reason.String()
	}
	if err := a.pub.PublishCall(ev); err != nil {
		a.log.Debug("Call event not published", logger.Error(err))
	}
}

// CallTo rings the portable with extension ext from the fixed part. It
// returns the id of the new call.
func (a *App) CallTo(ext string) (uint64, error) {
	rec, err := a.portables.GetByExtension(ext)
	if err != nil {
		return 0, ErrUnknownPortable
	}
	callee, err := rec.Identity()
	if err != nil {
		return 0, err
	}
	leg, err := a.cc.SetupReq(callee, &cc.Setup{
		BasicService: &sfmt.BasicService{Class: sfmt.CallClassNormal, Service: sfmt.ServiceBasicSpeech},
	})
	if err != nil {
		return 0, err
	}

	a.mu.Lock()
	a.nextCall++
	cl := &call{
		id:         a.nextCall,
		callee:     leg,
		calleeIPUI: callee,
		called:     ext,
		state:      CallProceeding,
		started:    time.Now(),
		callerDone: true,
	}
	a.calls[cl.id] = cl
	a.mu.Unlock()
	leg.Context = cl
	if a.metrics != nil {
		a.metrics.CallStarted(cl.id)
	}
	a.notifyCall(cl)
	return cl.id, nil
}

// HangUp releases every leg of call id. It must be called on the
// scheduler goroutine, like CallTo.
func (a *App) HangUp(id uint64) error {
	a.mu.RLock()
	cl, ok := a.calls[id]
	a.mu.RUnlock()
	if !ok {
		return ErrUnknownCall
	}
	for _, leg := range []*cc.Call{cl.caller, cl.callee} {
		if leg != nil {
			a.release(cl, leg, sfmt.ReleaseNormal)
		}
	}
	return nil
}
