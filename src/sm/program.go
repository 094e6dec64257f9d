package sm

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// String renders the program in its textual form, one instruction per
// line. This form is used for cross-validation against the SM interpreter
// and doubles, via Parse, as a golden-file test format.
func (p Program) String() string {
	sb := strings.Builder{}
	for _, ins := range p {
		sb.WriteString(ins.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// String renders a single instruction in the textual form.
func (ins Instruction) String() string {
	switch ins.Code {
	case READ:
		return "READ"
	case WRITE:
		return "WRITE"
	case BINOP:
		return fmt.Sprintf("BINOP %s", ins.Op)
	case LD:
		return fmt.Sprintf("LD %s", ins.Loc)
	case LDA:
		return fmt.Sprintf("LDA %s", ins.Loc)
	case ST:
		return fmt.Sprintf("ST %s", ins.Loc)
	case STI:
		return "STI"
	case CONST:
		return fmt.Sprintf("CONST %d", ins.N)
	case LABEL:
		return fmt.Sprintf("LABEL %s", ins.Label)
	case JMP:
		return fmt.Sprintf("JMP %s", ins.Label)
	case CJMP:
		return fmt.Sprintf("CJMP %s, %s", ins.Cond, ins.Label)
	case CALL:
		return fmt.Sprintf("CALL %s, %d", ins.Fun, ins.N)
	case BEGIN:
		return fmt.Sprintf("BEGIN %s, %d, %d", ins.Fun, ins.Args, ins.Locs)
	case END:
		return "END"
	case GLOBAL:
		return fmt.Sprintf("GLOBAL %s", ins.Name)
	case DROP:
		return "DROP"
	case DUP:
		return "DUP"
	default:
		return "?"
	}
}

func parseLoc(s string) (Loc, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "arg[") {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(s, "arg["), "]"))
		return Arg(n), err
	}
	if strings.HasPrefix(s, "loc[") {
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(s, "loc["), "]"))
		return Local(n), err
	}
	return Glb(s), nil
}

// Parse reads the textual form back into a Program. It is test/tooling
// infrastructure, not part of the compile pipeline: the pipeline always
// produces Program values directly from Compile.
func Parse(text string) (Program, error) {
	var prog Program
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.SplitN(line, " ", 2)
		mnemonic := fields[0]
		var rest string
		if len(fields) > 1 {
			rest = fields[1]
		}
		ins, err := parseInstruction(mnemonic, rest)
		if err != nil {
			return nil, fmt.Errorf("sm.Parse: %q: %w", line, err)
		}
		prog = append(prog, ins)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return prog, nil
}

func parseInstruction(mnemonic, rest string) (Instruction, error) {
	switch mnemonic {
	case "READ":
		return Read(), nil
	case "WRITE":
		return Write(), nil
	case "BINOP":
		return Binop(Op(strings.TrimSpace(rest))), nil
	case "LD", "LDA", "ST":
		loc, err := parseLoc(rest)
		if err != nil {
			return Instruction{}, err
		}
		switch mnemonic {
		case "LD":
			return LoadLoc(loc), nil
		case "LDA":
			return LoadAddr(loc), nil
		default:
			return Store(loc), nil
		}
	case "STI":
		return StoreIndirect(), nil
	case "CONST":
		n, err := strconv.Atoi(strings.TrimSpace(rest))
		return Const(n), err
	case "LABEL":
		return Label(strings.TrimSpace(rest)), nil
	case "JMP":
		return Jmp(strings.TrimSpace(rest)), nil
	case "CJMP":
		parts := strings.SplitN(rest, ",", 2)
		if len(parts) != 2 {
			return Instruction{}, fmt.Errorf("malformed CJMP operands %q", rest)
		}
		return Cjmp(Cond(strings.TrimSpace(parts[0])), strings.TrimSpace(parts[1])), nil
	case "CALL":
		parts := strings.SplitN(rest, ",", 2)
		if len(parts) != 2 {
			return Instruction{}, fmt.Errorf("malformed CALL operands %q", rest)
		}
		n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		return Call(strings.TrimSpace(parts[0]), n), err
	case "BEGIN":
		parts := strings.SplitN(rest, ",", 3)
		if len(parts) != 3 {
			return Instruction{}, fmt.Errorf("malformed BEGIN operands %q", rest)
		}
		args, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return Instruction{}, err
		}
		locals, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		return Begin(strings.TrimSpace(parts[0]), args, locals), err
	case "END":
		return End(), nil
	case "GLOBAL":
		return Global(strings.TrimSpace(rest)), nil
	case "DROP":
		return Drop(), nil
	case "DUP":
		return Dup(), nil
	default:
		return Instruction{}, fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
}
