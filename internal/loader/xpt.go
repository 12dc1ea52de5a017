package loader

import (
	"bytes"
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"aegis/internal/dataset"
	apperrors "aegis/internal/errors"
)

// SAS transport (XPORT version 5) files are a sequence of 80-byte records:
// library and member header records, a block of fixed-width NAMESTR column
// descriptors, then observation rows packed back to back and blank-padded
// to the final record boundary. Numerics are IBM System/360 doubles.
const xptRecordLen = 80

const (
	xptLibraryHeader = "HEADER RECORD*******LIBRARY HEADER RECORD!!!!!!!"
	xptMemberHeader  = "HEADER RECORD*******MEMBER  HEADER RECORD!!!!!!!"
	xptNamestrHeader = "HEADER RECORD*******NAMESTR HEADER RECORD!!!!!!!"
	xptObsHeader     = "HEADER RECORD*******OBS     HEADER RECORD!!!!!!!"
)

// xptVariable is one NAMESTR column descriptor.
type xptVariable struct {
	name    string
	numeric bool
	length  int
	pos     int
}

// loadXPT decodes a SAS transport file into a dataset. Only the first
// member is read, mirroring the first-sheet rule for workbooks.
func (l *Loader) loadXPT(name string, data []byte) (*dataset.Dataset, *apperrors.LoadError) {
	if len(data)%xptRecordLen != 0 || len(data) < 3*xptRecordLen {
		return nil, apperrors.NewDecodeError(string(FormatXPT), "truncated transport file")
	}
	if !bytes.HasPrefix(data, []byte(xptLibraryHeader)) {
		return nil, apperrors.NewDecodeError(string(FormatXPT), "missing library header record")
	}

	record := func(i int) []byte { return data[i*xptRecordLen : (i+1)*xptRecordLen] }
	nrec := len(data) / xptRecordLen

	memberIdx, namestrIdx, obsIdx := -1, -1, -1
	for i := 0; i < nrec; i++ {
		switch {
		case memberIdx == -1 && bytes.HasPrefix(record(i), []byte(xptMemberHeader)):
			memberIdx = i
		case namestrIdx == -1 && bytes.HasPrefix(record(i), []byte(xptNamestrHeader)):
			namestrIdx = i
		case obsIdx == -1 && bytes.HasPrefix(record(i), []byte(xptObsHeader)):
			obsIdx = i
		}
	}
	if memberIdx == -1 || namestrIdx == -1 || obsIdx == -1 || obsIdx < namestrIdx {
		return nil, apperrors.NewDecodeError(string(FormatXPT), "missing member, namestr or obs header record")
	}

	// The member header carries the descriptor size in its last digits;
	// version 5 writes 140.
	namestrLen := 140
	if n, err := strconv.Atoi(strings.TrimSpace(string(record(memberIdx)[74:80]))); err == nil && n > 0 {
		namestrLen = n
	}

	// Variable count lives in the namestr header record after the 48-byte
	// banner: six zeros, then a four-digit count.
	nvars, err := strconv.Atoi(strings.TrimSpace(string(record(namestrIdx)[54:58])))
	if err != nil || nvars <= 0 {
		return nil, apperrors.NewDecodeError(string(FormatXPT), "invalid variable count in namestr header")
	}

	descStart := (namestrIdx + 1) * xptRecordLen
	descEnd := descStart + nvars*namestrLen
	if descEnd > obsIdx*xptRecordLen {
		return nil, apperrors.NewDecodeError(string(FormatXPT), "namestr block overruns observation header")
	}

	vars := make([]xptVariable, nvars)
	rowLen := 0
	for i := 0; i < nvars; i++ {
		d := data[descStart+i*namestrLen : descStart+(i+1)*namestrLen]
		ntype := binary.BigEndian.Uint16(d[0:2])
		if ntype != 1 && ntype != 2 {
			return nil, apperrors.NewDecodeErrorf(string(FormatXPT), "variable %d has unknown type %d", i, ntype)
		}
		vars[i] = xptVariable{
			name:    strings.TrimRight(string(d[8:16]), " \x00"),
			numeric: ntype == 1,
			length:  int(binary.BigEndian.Uint16(d[4:6])),
			pos:     int(binary.BigEndian.Uint32(d[84:88])),
		}
		if vars[i].length <= 0 || vars[i].pos < 0 {
			return nil, apperrors.NewDecodeErrorf(string(FormatXPT), "variable %q has invalid layout", vars[i].name)
		}
		rowLen += vars[i].length
	}

	obs := data[(obsIdx+1)*xptRecordLen:]
	nrows := 0
	if rowLen > 0 {
		nrows = len(obs) / rowLen
	}
	// The final record is blank-padded; rows of pure blanks at the tail are
	// padding, not observations.
	for nrows > 0 && isBlank(obs[(nrows-1)*rowLen:nrows*rowLen]) {
		nrows--
	}

	cols := make([]dataset.Column, nvars)
	for j, v := range vars {
		if v.pos+v.length > rowLen {
			return nil, apperrors.NewDecodeErrorf(string(FormatXPT), "variable %q overruns row length", v.name)
		}
		cells := make([]dataset.Value, nrows)
		typ := dataset.TypeText
		if v.numeric {
			typ = dataset.TypeNumeric
		}
		for i := 0; i < nrows; i++ {
			field := obs[i*rowLen+v.pos : i*rowLen+v.pos+v.length]
			if v.numeric {
				f, missing := ibmToFloat64(field)
				if missing {
					cells[i] = dataset.Missing()
				} else {
					cells[i] = dataset.Number(f)
				}
			} else {
				s := strings.TrimRight(string(field), " \x00")
				if s == "" {
					// Blank character fields are the SAS missing value.
					cells[i] = dataset.Missing()
				} else {
					cells[i] = dataset.Text(s)
				}
			}
		}
		cols[j] = dataset.NewColumn(v.name, typ, cells)
	}

	ds, derr := dataset.FromColumns(name, cols)
	if derr != nil {
		return nil, apperrors.NewDecodeErrorf(string(FormatXPT), "build dataset: %v", derr)
	}
	return ds, nil
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' {
			return false
		}
	}
	return true
}

// ibmToFloat64 converts an IBM System/360 floating point field (1 to 8
// bytes, big endian) to IEEE 754. The second return reports the SAS missing
// sentinels: '.', '_' or 'A'..'Z' in the first byte with zero padding.
func ibmToFloat64(field []byte) (float64, bool) {
	var b [8]byte
	copy(b[:], field)

	first := b[0]
	if first == '.' || first == '_' || (first >= 'A' && first <= 'Z') {
		rest := true
		for _, c := range b[1:] {
			if c != 0 {
				rest = false
				break
			}
		}
		if rest {
			return 0, true
		}
	}

	frac := binary.BigEndian.Uint64(b[:]) & 0x00ffffffffffffff
	if frac == 0 {
		return 0, false
	}

	exp := int(first&0x7f) - 64
	v := math.Ldexp(float64(frac), 4*exp-56)
	if first&0x80 != 0 {
		v = -v
	}
	return v, false
}
