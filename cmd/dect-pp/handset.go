package main

import (
	"time"

	"github.com/dbehnke/dect-nwk/pkg/cc"
	"github.com/dbehnke/dect-nwk/pkg/clms"
	"github.com/dbehnke/dect-nwk/pkg/event"
	"github.com/dbehnke/dect-nwk/pkg/identity"
	"github.com/dbehnke/dect-nwk/pkg/lce"
	"github.com/dbehnke/dect-nwk/pkg/logger"
	"github.com/dbehnke/dect-nwk/pkg/mm"
	"github.com/dbehnke/dect-nwk/pkg/sfmt"
)

// script is what the handset does once it is attached
type script struct {
	dial    string
	message string
	hold    time.Duration
}

// handset drives a portable: it subscribes, locates and then runs its
// script. Everything runs on the event loop.
type handset struct {
	lce   *lce.LCE
	sched event.Scheduler
	log   *logger.Logger
	do    script

	mm   *mm.MM
	cc   *cc.CC
	clms *clms.CLMS

	call *cc.Call
}

func newHandset(l *lce.LCE, do script, mmCfg mm.Config, ccCfg cc.Config, log *logger.Logger) (*handset, error) {
	h := &handset{lce: l, sched: l.Scheduler(), log: log.WithComponent("handset"), do: do}
	var err error
	h.mm, err = mm.New(l, mm.Ops{
		AccessRightsCfm:          h.accessRightsCfm,
		LocateCfm:                h.locateCfm,
		AccessRightsTerminateInd: h.terminateInd,
	}, mmCfg, log)
	if err != nil {
		return nil, err
	}
	h.cc, err = cc.New(l, cc.Ops{
		SetupInd:    h.setupInd,
		SetupAckInd: func(c *cc.Call, msg *cc.Progress) { h.log.Info("Fixed part wants more digits") },
		AlertInd:    func(c *cc.Call, msg *cc.Progress) { h.log.Info("Ringing") },
		ConnectInd:  func(c *cc.Call, msg *cc.Progress) { h.connected(c) },
		ConnectCfm:  h.connected,
		ReleaseInd:  h.releaseInd,
		ReleaseCfm: func(c *cc.Call, err error) {
			h.log.Info("Call cleared", logger.String("call", c.String()), logger.Error(err))
			h.call = nil
		},
	}, ccCfg, log)
	if err != nil {
		return nil, err
	}
	h.clms, err = clms.New(l, clms.Ops{
		VariableInd: func(link lce.LinkID, msg *clms.Variable) {
			if msg.Display != nil {
				h.log.Info("Message", logger.String("text", string(msg.Display.Text)))
			}
		},
	}, log)
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *handset) endpoint() (*mm.Endpoint, error) {
	return h.mm.Endpoint(identity.IPUI{})
}

// start subscribes to the fixed part
func (h *handset) start() {
	ep, err := h.endpoint()
	if err == nil {
		err = h.mm.AccessRightsReq(ep, &mm.AccessRightsRequest{})
	}
	if err != nil {
		h.log.Error("Access rights request failed", logger.Error(err))
	}
}

func (h *handset) accessRightsCfm(ep *mm.Endpoint, accept bool, res *mm.AccessRightsAccept, err error) {
	if !accept {
		h.log.Error("Subscription refused", logger.Error(err))
		return
	}
	h.log.Info("Subscribed", logger.String("ipui", h.lce.LocalIPUI().String()))
	if err := h.mm.LocateReq(ep, &mm.LocateRequest{}); err != nil {
		h.log.Error("Locate request failed", logger.Error(err))
	}
}

func (h *handset) locateCfm(ep *mm.Endpoint, accept bool, res *mm.LocateAccept, err error) {
	if !accept {
		h.log.Error("Locate refused", logger.Error(err))
		return
	}
	h.log.Info("Attached", logger.String("tpui", h.lce.LocalTPUI().String()))

	if h.do.message != "" {
		err := h.clms.SendVariable(identity.IPUI{}, &clms.Variable{
			Display: &sfmt.Display{Text: []byte(h.do.message)},
		})
		if err != nil {
			h.log.Warn("Sending message failed", logger.Error(err))
		}
	}
	if h.do.dial != "" {
		h.dial(h.do.dial)
	}
}

func (h *handset) dial(number string) {
	c, err := h.cc.SetupReq(identity.IPUI{}, &cc.Setup{
		CalledPartyNumber: &sfmt.CalledPartyNumber{
			NumberType: sfmt.NumberTypeSubscriber,
			Plan:       sfmt.NumberPlanPrivate,
			Address:    []byte(number),
		},
		SendingComplete: &sfmt.SendingComplete{},
	})
	if err != nil {
		h.log.Error("Call setup failed", logger.Error(err))
		return
	}
	h.call = c
	h.log.Info("Dialling", logger.String("number", number))
}

// setupInd answers every incoming call
func (h *handset) setupInd(c *cc.Call, msg *cc.Setup) {
	from := ""
	if msg.CallingPartyNumber != nil {
		from = string(msg.CallingPartyNumber.Address)
	}
	h.log.Info("Incoming call", logger.String("from", from))
	if h.call != nil {
		_ = h.cc.RejectReq(c, sfmt.ReleaseUserBusy)
		return
	}
	h.call = c
	if err := h.cc.AlertReq(c, &cc.Progress{}); err != nil {
		h.log.Warn("Alerting failed", logger.Error(err))
		return
	}
	if err := h.cc.ConnectReq(c, &cc.Progress{}); err != nil {
		h.log.Warn("Answering failed", logger.Error(err))
	}
}

// connected hangs up after the hold time
func (h *handset) connected(c *cc.Call) {
	h.log.Info("Call connected", logger.String("call", c.String()))
	if h.do.hold <= 0 {
		return
	}
	h.sched.AfterFunc(h.do.hold, func() {
		if h.call != c || c.State == cc.StateNull {
			return
		}
		if err := h.cc.ReleaseReq(c, sfmt.ReleaseNormal); err != nil {
			h.log.Warn("Hang up failed", logger.Error(err))
		}
	})
}

func (h *handset) releaseInd(c *cc.Call, reason sfmt.ReleaseCode) {
	h.log.Info("Call released",
		logger.String("call", c.String()),
		logger.String("reason", reason.String()))
	if h.call == c {
		h.call = nil
	}
}

func (h *handset) terminateInd(ep *mm.Endpoint, req *mm.AccessRightsTerminateRequest) {
	h.log.Info("Subscription terminated by the fixed part")
	if err := h.mm.AccessRightsTerminateRes(ep); err != nil {
		h.log.Warn("Terminate accept failed", logger.Error(err))
	}
}

// detach tells the fixed part the handset goes away
func (h *handset) detach() {
	ep, err := h.endpoint()
	if err == nil {
		err = h.mm.DetachReq(ep, &mm.Detach{})
	}
	if err != nil {
		h.log.Debug("Detach not sent", logger.Error(err))
	}
}
