package tektronix

import (
	"bytes"
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/gotmc/query"
	"go.uber.org/zap"
)

// WaveformFileExtensions are the file types MMEMORY:OPEN:SASSET accepts
var WaveformFileExtensions = []string{".awg", ".awgx", ".mat", ".seqx"}

func quote(s string) string {
	return `"` + s + `"`
}

// splitPath returns the file name of an instrument path, which may use either
// slash, and its lowercased extension
func splitPath(p string) (base, ext string) {
	base = p
	if i := strings.LastIndexAny(base, `\/`); i != -1 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i != -1 {
		ext = strings.ToLower(base[i:])
	}
	return base, ext
}

func checkWaveformFile(file string) error {
	_, ext := splitPath(file)
	for _, e := range WaveformFileExtensions {
		if ext == e {
			return nil
		}
	}
	return domainErrorf("%s is an invalid waveform file extension.", ext)
}

func (d *Device) requireAWG() error {
	if d.Family() != FamilyAWG {
		return ErrNotSupported
	}
	return nil
}

// loadSet opens a waveform set file, or a single waveform from it when name
// is not empty
func (d *Device) loadSet(file, name string) error {
	if err := checkWaveformFile(file); err != nil {
		return err
	}
	cmd := "MMEMORY:OPEN:SASSET " + quote(file)
	if name != "" {
		cmd = "MMEMORY:OPEN:SASSET:WAVEFORM " + quote(file) + ", " + quote(name)
	}
	if err := d.t.Write(cmd); err != nil {
		return err
	}
	if err := d.t.OPC(); err != nil {
		return err
	}
	d.catalog.Invalidate()
	return d.t.ExpectESR(0)
}

// LoadWaveformSet loads every waveform of a set file into the waveform list.
// An empty file loads the factory predefined set.
func (d *Device) LoadWaveformSet(file string) error {
	if err := d.requireAWG(); err != nil {
		return err
	}
	if file == "" {
		file = d.dialect.PredefinedSet
	}
	if file == "" {
		return ErrNotSupported
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadSet(file, "")
}

// LoadWaveformFromSet loads one waveform of a set file
func (d *Device) LoadWaveformFromSet(file, name string) error {
	if err := d.requireAWG(); err != nil {
		return err
	}
	if file == "" {
		file = d.dialect.PredefinedSet
	}
	if file == "" {
		return ErrNotSupported
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadSet(file, name)
}

// ImportWaveform imports a waveform file on the instrument's disk into the
// waveform list under name.  typ is the file format, e.g. TXT or MAT.
func (d *Device) ImportWaveform(name, path, typ string) error {
	if err := d.requireAWG(); err != nil {
		return err
	}
	if !strings.HasPrefix(path, `"`) {
		path = `"` + path
	}
	if !strings.HasSuffix(path, `"`) {
		path += `"`
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.t.Write("MMEMory:IMPort " + quote(name) + ", " + path + ", " + typ); err != nil {
		return err
	}
	d.catalog.Invalidate()
	return d.t.OPC()
}

// definiteBlock encodes samples as an IEEE 488.2 definite length block
func definiteBlock(samples []uint16) []byte {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.BigEndian.PutUint16(data[2*i:], s)
	}
	l := strconv.Itoa(len(data))
	var buf bytes.Buffer
	buf.WriteByte('#')
	buf.WriteString(strconv.Itoa(len(l)))
	buf.WriteString(l)
	buf.Write(data)
	return buf.Bytes()
}

// SendWaveform writes samples to a file in the instrument's memory
func (d *Device) SendWaveform(file string, samples []uint16) error {
	if err := d.requireAWG(); err != nil {
		return err
	}
	if len(samples) == 0 {
		return domainErrorf("no samples to send to %s", file)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.log.Info("sending waveform", zap.String("file", file), zap.Int("samples", len(samples)))
	return d.t.WriteBlock("MMEMORY:DATA "+quote(file)+",", definiteBlock(samples))
}

// WaveformLength returns the record length of a waveform in the waveform
// list.  A file path is reduced to its name without extension.
func (d *Device) WaveformLength(name string) (int, error) {
	if err := d.requireAWG(); err != nil {
		return 0, err
	}
	base, ext := splitPath(name)
	stem := base[:len(base)-len(ext)]
	d.mu.Lock()
	defer d.mu.Unlock()
	return query.Int(d.t, "WLIST:WAVEFORM:LENGTH? "+quote(stem))
}

// WaveformConstraints resolves the limits of playing a waveform already in
// the waveform list
func (d *Device) WaveformConstraints(name string, path OutputPath) (Constraints, error) {
	l, err := d.WaveformLength(name)
	if err != nil {
		return Constraints{}, err
	}
	return d.policy.Constraints(ConstraintQuery{WaveformLength: l, OutputPath: path})
}
