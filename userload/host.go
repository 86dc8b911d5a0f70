// Package userload runs beamline and experiment setup scripts. Scripts
// are Lua, executed in a sandboxed state with a small session API for
// registering and documenting objects.
package userload

import (
	"fmt"
	"log/slog"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/tangkong/hutch-python/device"
	"github.com/tangkong/hutch-python/errors"
)

// Host owns a sandboxed Lua state bound to a registry builder. The
// LState is not goroutine safe; the load sequence runs it from a single
// goroutine and the mutex guards against accidental concurrent use.
type Host struct {
	mu      sync.Mutex
	state   *lua.LState
	builder *device.Builder
	logger  *slog.Logger
	closed  bool
}

// NewHost creates a script host bound to the given registry builder
func NewHost(builder *device.Builder, logger *slog.Logger) *Host {
	if logger == nil {
		logger = slog.Default()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os, debug and package stay closed; scripts configure the
	// session, they do not touch the machine.
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring"} {
		L.SetGlobal(name, lua.LNil)
	}

	h := &Host{state: L, builder: builder, logger: logger}
	h.installSessionAPI()
	return h
}

// Close releases the Lua state
func (h *Host) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.state.Close()
		h.closed = true
	}
}

// RunFile executes one script file inside the sandbox
func (h *Host) RunFile(path string) (err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.WrapFatal(
			errors.ErrSessionClosed, "userload", "RunFile", "script host state check")
	}

	defer func() {
		if r := recover(); r != nil {
			err = errors.WrapInvalid(
				fmt.Errorf("%w: script panic: %v", errors.ErrScriptFailed, r),
				"userload", "RunFile", fmt.Sprintf("run %s", path))
		}
	}()

	if err := h.state.DoFile(path); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrScriptFailed, err),
			"userload", "RunFile", fmt.Sprintf("run %s", path))
	}
	return nil
}

// installSessionAPI publishes the session table:
//
//	session.register(name, class, attrs)  -- add an object to the session
//	session.doc(name, text)               -- document a session object
//	session.exists(name)                  -- true if the name is taken
//	session.hide(name, attr)              -- drop attr from tab completion
//	session.show(name, attr)              -- add attr to tab completion
//	session.log(msg)                      -- write to the session log
func (h *Host) installSessionAPI() {
	L := h.state
	session := L.NewTable()

	L.SetField(session, "register", L.NewFunction(h.luaRegister))
	L.SetField(session, "doc", L.NewFunction(h.luaDoc))
	L.SetField(session, "exists", L.NewFunction(h.luaExists))
	L.SetField(session, "hide", L.NewFunction(h.luaHide))
	L.SetField(session, "show", L.NewFunction(h.luaShow))
	L.SetField(session, "log", L.NewFunction(h.luaLog))

	L.SetGlobal("session", session)
}

func (h *Host) luaRegister(L *lua.LState) int {
	name := L.CheckString(1)
	class := L.CheckString(2)

	var attrs []string
	if L.GetTop() >= 3 {
		tbl := L.CheckTable(3)
		tbl.ForEach(func(_, v lua.LValue) {
			attrs = append(attrs, v.String())
		})
	}

	dev := device.NewBase(name, class, attrs)
	if err := h.builder.Add(dev); err != nil {
		L.RaiseError("register %s: %v", name, err)
		return 0
	}
	return 0
}

func (h *Host) luaDoc(L *lua.LState) int {
	name := L.CheckString(1)
	text := L.CheckString(2)
	h.builder.Doc(name, text)
	return 0
}

func (h *Host) luaExists(L *lua.LState) int {
	name := L.CheckString(1)
	L.Push(lua.LBool(h.builder.Has(name)))
	return 1
}

func (h *Host) luaHide(L *lua.LState) int {
	h.setVisibility(L, false)
	return 0
}

func (h *Host) luaShow(L *lua.LState) int {
	h.setVisibility(L, true)
	return 0
}

func (h *Host) setVisibility(L *lua.LState, visible bool) {
	name := L.CheckString(1)
	attr := L.CheckString(2)

	obj, ok := h.builder.Get(name)
	if !ok {
		L.RaiseError("no such object: %s", name)
		return
	}
	dev, ok := obj.(device.Device)
	if !ok {
		L.RaiseError("%s is not a configurable device", name)
		return
	}
	if visible {
		if !dev.HasAttribute(attr) {
			L.RaiseError("%s has no attribute %s", name, attr)
			return
		}
		dev.Tab().Add(attr)
	} else {
		dev.Tab().Remove(attr)
	}
}

func (h *Host) luaLog(L *lua.LState) int {
	h.logger.Info(L.CheckString(1), "source", "script")
	return 0
}
