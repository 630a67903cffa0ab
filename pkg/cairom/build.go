package cairom

import (
	"github.com/pkg/errors"

	"github.com/cairo-m/cairom/internal/cairom/codegen"
	"github.com/cairo-m/cairom/internal/cairom/mir"
	"github.com/cairo-m/cairom/internal/cairom/types"
)

// BuildProgram runs codegen over a successful CompileResult's MIR and
// packages the linked instruction stream as a Program, ready for Run or
// for persisting via Program's JSON (de)serialization.
func BuildProgram(sourceName string, result *CompileResult) (*Program, error) {
	if result.HasErrors() || result.MIR == nil {
		return nil, &VMError{Code: ErrCodegen, Message: "cannot build a Program from a compilation with errors"}
	}

	linked, err := codegen.Build(result.MIR)
	if err != nil {
		wrapped := errors.WithStack(err)
		log.WithError(wrapped).WithField("source", sourceName).Error("codegen failed")
		return nil, &VMError{Code: ErrCodegen, Message: "codegen failed", Cause: wrapped}
	}

	instrs := make([]Word, len(linked.Instructions))
	for i, ins := range linked.Instructions {
		instrs[i] = Word{
			Op:  uint32(ins.Op),
			Op0: ins.Op0.Value(),
			Op1: ins.Op1.Value(),
			Op2: ins.Op2.Value(),
		}
	}

	tbl := result.MIR.Types
	entryPoints := make([]EntryPoint, 0, len(result.MIR.Functions))
	for _, fn := range result.MIR.Functions {
		params := make([]AbiType, 0, len(fn.Params))
		for _, p := range fn.Params {
			params = append(params, mirTypeToAbi(tbl, paramType(fn, p)))
		}
		entryPoints = append(entryPoints, EntryPoint{
			Name:       fn.Name,
			PC:         linked.FunctionPCs[fn.ID],
			ParamTypes: params,
			ReturnType: mirTypeToAbi(tbl, fn.RetType),
		})
	}

	return &Program{SourceName: sourceName, Instrs: instrs, EntryPoints: entryPoints}, nil
}

// paramType finds the declared type of parameter v by locating its
// defining OpParam instruction; MIR values aren't dominance-indexed, so
// this scans every block the same way the optimizer's internal lookups do.
func paramType(fn *mir.Function, v mir.ValueId) types.TypeId {
	for _, blk := range fn.Blocks {
		for i := range blk.Instrs {
			if blk.Instrs[i].Result == v && blk.Instrs[i].Op == mir.OpParam {
				return blk.Instrs[i].Type
			}
		}
	}
	return types.UnknownType
}

// mirTypeToAbi translates an internal TypeId into the public AbiType
// shape Run's argument encoder and return decoder operate on.
func mirTypeToAbi(tbl *types.Table, id types.TypeId) AbiType {
	ty := tbl.Get(id)
	switch ty.Kind {
	case types.KindFelt:
		return AbiType{Kind: AbiFelt}
	case types.KindBool:
		return AbiType{Kind: AbiBool}
	case types.KindU32:
		return AbiType{Kind: AbiU32}
	case types.KindPointer:
		return AbiType{Kind: AbiPointer}
	case types.KindTuple:
		elems := make([]AbiType, len(ty.Elements))
		for i, e := range ty.Elements {
			elems[i] = mirTypeToAbi(tbl, e)
		}
		return AbiType{Kind: AbiTuple, Elements: elems}
	case types.KindStruct:
		fields := make([]AbiField, len(ty.Fields))
		for i, f := range ty.Fields {
			fields[i] = AbiField{Name: f.Name, Type: mirTypeToAbi(tbl, f.Type)}
		}
		return AbiType{Kind: AbiStruct, Name: ty.StructName, Fields: fields}
	case types.KindFixedArray:
		elem := mirTypeToAbi(tbl, ty.ElemType)
		return AbiType{Kind: AbiFixedSizeArray, Element: &elem, Size: ty.Length}
	default:
		return AbiType{Kind: AbiUnit}
	}
}
