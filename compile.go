package lvs

// CurrentVersion is the TLV model version this package writes, per
// spec.md §6 ("Version documented here: 0x00011000").
const CurrentVersion uint32 = 0x00011000

// Compile turns LVS source text into a compiled Model: parse (C1),
// resolve + allocate pattern ids (C2), expand chains (C3), and build the
// tree (C4), per spec.md §2's C1→C4 data flow.
func Compile(source string) (*Model, error) {
	file, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return compileFile(file)
}

func compileFile(file *File) (*Model, error) {
	rules, namedCnt, err := Resolve(file)
	if err != nil {
		return nil, err
	}
	chains, err := ExpandChains(rules)
	if err != nil {
		return nil, err
	}
	model, _, err := BuildTree(chains, namedCnt)
	if err != nil {
		return nil, err
	}
	model.Version = CurrentVersion
	return model, nil
}
