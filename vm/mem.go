package vm

import (
	"os"

	"github.com/pkg/errors"

	"picovm/opcode"
)

// LoadROMFile reads a ROM image from fileName. The returned slice's length
// is always <= opcode.ROMLen; a longer file is rejected rather than
// truncated.
func LoadROMFile(fileName string) ([]byte, error) {
	b, err := os.ReadFile(fileName)
	if err != nil {
		return nil, errors.Wrapf(err, "reading ROM file %s", fileName)
	}
	if len(b) > opcode.ROMLen {
		return nil, errors.Errorf("%s: %d bytes exceeds ROM region length %d", fileName, len(b), opcode.ROMLen)
	}
	return b, nil
}

// SaveROMFile writes rom to fileName, creating or truncating it.
func SaveROMFile(fileName string, rom []byte) (err error) {
	f, err := os.Create(fileName)
	if err != nil {
		return errors.Wrapf(err, "creating ROM file %s", fileName)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = errors.Wrap(cerr, "closing ROM file")
		}
	}()
	if _, err = f.Write(rom); err != nil {
		return errors.Wrapf(err, "writing ROM file %s", fileName)
	}
	return nil
}
