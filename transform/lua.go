package transform

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	luajson "layeh.com/gopher-json"
)

type LuaTransformerConfig struct {
	ScriptPath string `yaml:"script_path"`
}

// LuaTransformer reshapes query results with a lua script.
// The script MUST define `transform(collection, value)` returning the new value.
// value is the decoded JSON result; the return value is encoded back to JSON.
// Scripts can use the JSON helper with `local json = require("json")`.
type LuaTransformer struct {
	cfg   LuaTransformerConfig
	proto *lua.FunctionProto
	pool  sync.Pool
}

func NewLuaTransformer(cfg LuaTransformerConfig) (*LuaTransformer, error) {
	src, err := os.ReadFile(cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("cannot read transform script: %w", err)
	}

	chunk, err := parse.Parse(strings.NewReader(string(src)), cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("cannot parse transform script: %w", err)
	}

	proto, err := lua.Compile(chunk, cfg.ScriptPath)
	if err != nil {
		return nil, fmt.Errorf("cannot compile transform script: %w", err)
	}

	t := &LuaTransformer{cfg: cfg, proto: proto}

	// The first state doubles as a check of the script.
	L, err := t.newState()
	if err != nil {
		return nil, err
	}
	t.pool.Put(L)

	return t, nil
}

func (t *LuaTransformer) newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	// os and io stay closed.
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.LoadLibName, lua.OpenPackage},
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	luajson.Preload(L)

	L.Push(L.NewFunctionFromProto(t.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		L.Close()
		return nil, fmt.Errorf("cannot run transform script: %w", err)
	}

	if L.GetGlobal("transform").Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("transform script %s does not define transform(collection, value)", t.cfg.ScriptPath)
	}

	return L, nil
}

func (t *LuaTransformer) state() (*lua.LState, error) {
	if L, ok := t.pool.Get().(*lua.LState); ok {
		return L, nil
	}
	return t.newState()
}

// Transform runs the script on one result.
func (t *LuaTransformer) Transform(collection string, result json.RawMessage) (json.RawMessage, error) {
	L, err := t.state()
	if err != nil {
		return nil, err
	}

	value, err := luajson.Decode(L, result)
	if err != nil {
		t.pool.Put(L)
		return nil, fmt.Errorf("cannot decode result for lua: %w", err)
	}

	err = L.CallByParam(lua.P{
		Fn:      L.GetGlobal("transform"),
		NRet:    1,
		Protect: true,
	}, lua.LString(collection), value)

	// A failed call may leave globals or the stack half written, so the state
	// is closed instead of going back to the pool.
	if err != nil {
		L.Close()
		return nil, fmt.Errorf("lua script error: %w", err)
	}

	ret := L.Get(-1)
	out, err := luajson.Encode(ret)
	L.SetTop(0)
	t.pool.Put(L)
	if err != nil {
		return nil, fmt.Errorf("cannot encode lua result: %w", err)
	}

	return out, nil
}
