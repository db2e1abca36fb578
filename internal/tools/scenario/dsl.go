// Package scenario executes Lua-scripted battle-map sequences against a
// running map authority, through the same client sessions the UI uses.
package scenario

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a named, ordered list of steps produced by a Lua script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted action or expectation.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile evaluates a Lua script that returns a Scenario.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := newLuaState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := runLoadedChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

// LoadScenarioFromString evaluates an in-memory Lua script.
func LoadScenarioFromString(source, name string) (*Scenario, error) {
	state := newLuaState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	scenario, err := runLoadedChunk(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = name
	}
	return scenario, nil
}

func newLuaState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScenarioType(state)
	registerScenarioConstructor(state)
	return state
}

func runLoadedChunk(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "add_token", Function: scenarioAddToken},
	{Name: "move_token", Function: scenarioMoveToken},
	{Name: "remove_token", Function: scenarioRemoveToken},
	{Name: "add_shape", Function: scenarioAddShape},
	{Name: "stroke", Function: scenarioStroke},
	{Name: "undo_stroke", Function: scenarioUndoStroke},
	{Name: "background", Function: scenarioBackground},
	{Name: "settings", Function: scenarioSettings},
	{Name: "start_combat", Function: scenarioStartCombat},
	{Name: "advance_turn", Function: scenarioAdvanceTurn},
	{Name: "end_combat", Function: scenarioEndCombat},
	{Name: "log", Function: scenarioLog},
	{Name: "save_library", Function: scenarioSaveLibrary},
	{Name: "load_library", Function: scenarioLoadLibrary},
	{Name: "clear_map", Function: scenarioClearMap},
	{Name: "reconcile", Function: scenarioReconcile},
	{Name: "expect_turn", Function: scenarioExpectTurn},
	{Name: "expect_round", Function: scenarioExpectRound},
	{Name: "expect_combat", Function: scenarioExpectCombat},
	{Name: "expect_tokens", Function: scenarioExpectTokens},
	{Name: "expect_strokes", Function: scenarioExpectStrokes},
	{Name: "expect_shapes", Function: scenarioExpectShapes},
	{Name: "expect_position", Function: scenarioExpectPosition},
}

func scenarioAddToken(state *lua.State) int {
	scenario := checkScenario(state)
	label := lua.CheckString(state, 2)
	opts := optionalTable(state, 3)
	data := map[string]any{"label": label}
	for key, value := range opts {
		data[key] = value
	}
	appendStep(scenario, "add_token", data)
	return 0
}

func scenarioMoveToken(state *lua.State) int {
	scenario := checkScenario(state)
	label := lua.CheckString(state, 2)
	x := lua.CheckNumber(state, 3)
	y := lua.CheckNumber(state, 4)
	appendStep(scenario, "move_token", map[string]any{"label": label, "x": x, "y": y})
	return 0
}

func scenarioRemoveToken(state *lua.State) int {
	scenario := checkScenario(state)
	label := lua.CheckString(state, 2)
	appendStep(scenario, "remove_token", map[string]any{"label": label})
	return 0
}

func scenarioAddShape(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "add_shape", tableToMap(state, 2))
	return 0
}

func scenarioStroke(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "stroke", tableToMap(state, 2))
	return 0
}

func scenarioUndoStroke(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "undo_stroke", nil)
	return 0
}

func scenarioBackground(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "background", tableToMap(state, 2))
	return 0
}

func scenarioSettings(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeTable)
	appendStep(scenario, "settings", tableToMap(state, 2))
	return 0
}

func scenarioStartCombat(state *lua.State) int {
	scenario := checkScenario(state)
	order := lua.CheckString(state, 2)
	opts := optionalTable(state, 3)
	data := map[string]any{"order": order}
	for key, value := range opts {
		data[key] = value
	}
	appendStep(scenario, "start_combat", data)
	return 0
}

func scenarioAdvanceTurn(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "advance_turn", nil)
	return 0
}

func scenarioEndCombat(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "end_combat", nil)
	return 0
}

func scenarioLog(state *lua.State) int {
	scenario := checkScenario(state)
	action := lua.CheckString(state, 2)
	message := lua.OptString(state, 3, "")
	appendStep(scenario, "log", map[string]any{"action": action, "message": message})
	return 0
}

func scenarioSaveLibrary(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	appendStep(scenario, "save_library", map[string]any{"name": name})
	return 0
}

func scenarioLoadLibrary(state *lua.State) int {
	scenario := checkScenario(state)
	name := lua.CheckString(state, 2)
	appendStep(scenario, "load_library", map[string]any{"name": name})
	return 0
}

func scenarioClearMap(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "clear_map", nil)
	return 0
}

func scenarioReconcile(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "reconcile", nil)
	return 0
}

func scenarioExpectTurn(state *lua.State) int {
	scenario := checkScenario(state)
	turn := int(lua.CheckNumber(state, 2))
	appendStep(scenario, "expect_turn", map[string]any{"turn": turn})
	return 0
}

func scenarioExpectRound(state *lua.State) int {
	scenario := checkScenario(state)
	round := int(lua.CheckNumber(state, 2))
	appendStep(scenario, "expect_round", map[string]any{"round": round})
	return 0
}

func scenarioExpectCombat(state *lua.State) int {
	scenario := checkScenario(state)
	lua.CheckType(state, 2, lua.TypeBoolean)
	active := state.ToBoolean(2)
	appendStep(scenario, "expect_combat", map[string]any{"active": active})
	return 0
}

func scenarioExpectTokens(state *lua.State) int {
	scenario := checkScenario(state)
	count := int(lua.CheckNumber(state, 2))
	appendStep(scenario, "expect_tokens", map[string]any{"count": count})
	return 0
}

func scenarioExpectStrokes(state *lua.State) int {
	scenario := checkScenario(state)
	count := int(lua.CheckNumber(state, 2))
	appendStep(scenario, "expect_strokes", map[string]any{"count": count})
	return 0
}

func scenarioExpectShapes(state *lua.State) int {
	scenario := checkScenario(state)
	count := int(lua.CheckNumber(state, 2))
	appendStep(scenario, "expect_shapes", map[string]any{"count": count})
	return 0
}

func scenarioExpectPosition(state *lua.State) int {
	scenario := checkScenario(state)
	label := lua.CheckString(state, 2)
	x := lua.CheckNumber(state, 3)
	y := lua.CheckNumber(state, 4)
	appendStep(scenario, "expect_position", map[string]any{"label": label, "x": x, "y": y})
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) int {
	if scenario == nil {
		return -1
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
	return len(scenario.Steps) - 1
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return normalizeNumber(value)
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToGo(state, index)
	case lua.TypeUserData:
		return state.ToUserData(index)
	default:
		return nil
	}
}

func tableToGo(state *lua.State, index int) any {
	if state.TypeOf(index) != lua.TypeTable {
		return nil
	}

	index = state.AbsIndex(index)
	isArray := true
	maxIndex := 0
	count := 0
	state.PushNil()
	for state.Next(index) {
		if isArray {
			if state.TypeOf(-2) != lua.TypeNumber {
				isArray = false
			} else if idx, ok := state.ToInteger(-2); ok && idx > 0 {
				count++
				if idx > maxIndex {
					maxIndex = idx
				}
			} else {
				isArray = false
			}
		}
		state.Pop(1)
	}

	if isArray && count > 0 && maxIndex == count {
		result := make([]any, 0, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			state.RawGetInt(index, i)
			result = append(result, luaToGo(state, -1))
			state.Pop(1)
		}
		return result
	}

	return tableToMap(state, index)
}

func normalizeNumber(value float64) any {
	if math.Mod(value, 1) == 0 {
		return int(value)
	}
	return value
}
