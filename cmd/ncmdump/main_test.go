package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/zetetos/ncm-unlock/internal/container"
)

type NCMDumpTestSuite struct {
	suite.Suite
	dir   string
	audio []byte
}

func TestNCMDumpTestSuite(t *testing.T) {
	suite.Run(t, new(NCMDumpTestSuite))
}

func (suite *NCMDumpTestSuite) SetupTest() {
	suite.dir = suite.T().TempDir()
	suite.audio = bytes.Repeat([]byte{0x12, 0x34, 0x56}, 300)
}

func (suite *NCMDumpTestSuite) writeContainer(name, format string) string {
	data, err := container.Encode(container.Source{
		Key:      []byte("3141592653589793"),
		Metadata: map[string]any{"format": format},
		Audio:    suite.audio,
	})
	suite.Require().NoError(err)

	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, data, 0o600))

	return path
}

func (suite *NCMDumpTestSuite) TestDecodesGlobIntoOutDir() {
	// Arrange
	suite.writeContainer("a.ncm", "flac")
	suite.writeContainer("b.ncm", "mp3")
	outDir := filepath.Join(suite.dir, "out")

	var stdout bytes.Buffer

	// Act
	code := run([]string{"--no-color", "--out-dir", outDir, filepath.Join(suite.dir, "*.ncm")}, &stdout)

	// Assert
	suite.Equal(0, code)
	suite.Contains(stdout.String(), "2 decoded, 0 failed")

	flac, err := os.ReadFile(filepath.Join(outDir, "a.flac"))
	suite.Require().NoError(err)
	suite.Equal(suite.audio, flac)

	mp3, err := os.ReadFile(filepath.Join(outDir, "b.mp3"))
	suite.Require().NoError(err)
	suite.Equal(suite.audio, mp3)
}

func (suite *NCMDumpTestSuite) TestFailureSetsExitStatusAndReport() {
	// Arrange
	good := suite.writeContainer("good.ncm", "ogg")
	bad := filepath.Join(suite.dir, "bad.ncm")
	suite.Require().NoError(os.WriteFile(bad, []byte("not a container"), 0o600))

	report := filepath.Join(suite.dir, "report.csv")

	var stdout bytes.Buffer

	// Act
	code := run([]string{"--no-color", "--report", report, good, bad}, &stdout)

	// Assert
	suite.Equal(1, code)
	suite.Contains(stdout.String(), "FAIL "+bad)
	suite.Contains(stdout.String(), "1 decoded, 1 failed")
	suite.FileExists(filepath.Join(suite.dir, "good.ogg"))
	suite.NoFileExists(filepath.Join(suite.dir, "bad.mp3"))

	csv, err := os.ReadFile(report)
	suite.Require().NoError(err)

	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	suite.Require().Len(lines, 3)
	suite.True(strings.HasPrefix(lines[0], "input,output,format,bytes,status,error,elapsed_ms"))
	suite.Contains(lines[1], ",ok,")
	suite.Contains(lines[2], ",failed,")
}

func (suite *NCMDumpTestSuite) TestConfigFileSuppliesDefaults() {
	// Arrange
	suite.writeContainer("c.ncm", "flac")
	outDir := filepath.Join(suite.dir, "from-config")
	cfgPath := filepath.Join(suite.dir, "ncmdump.yaml")
	suite.Require().NoError(os.WriteFile(cfgPath, []byte("out-dir: "+outDir+"\nno-color: true\n"), 0o600))

	var stdout bytes.Buffer

	// Act
	code := run([]string{"--config", cfgPath, filepath.Join(suite.dir, "c.ncm")}, &stdout)

	// Assert
	suite.Equal(0, code)
	suite.FileExists(filepath.Join(outDir, "c.flac"))
}

func (suite *NCMDumpTestSuite) TestNoMatchingInputs() {
	var stdout bytes.Buffer

	code := run([]string{"--no-color", filepath.Join(suite.dir, "*.ncm")}, &stdout)

	suite.Equal(1, code)
}

func (suite *NCMDumpTestSuite) TestMissingArguments() {
	var stdout bytes.Buffer

	code := run([]string{"--no-color"}, &stdout)

	suite.Equal(2, code)
}

func (suite *NCMDumpTestSuite) TestStatusLines() {
	// Arrange
	printer := newStatusPrinter(true)

	var out bytes.Buffer

	// Act
	printer.Decoded(&out, "a.ncm", "a.flac", "flac", false)
	printer.Decoded(&out, "b.ncm", "b.mp3", "mp3", true)
	printer.Detail(&out, "metadata", errors.New("bad base64"))
	printer.Failed(&out, "c.ncm", errors.New("invalid container header"))

	// Assert
	suite.Equal(
		"OK   a.ncm -> a.flac [flac]\n"+
			"WARN b.ncm -> b.mp3 [mp3]\n"+
			"     metadata: bad base64\n"+
			"FAIL c.ncm: invalid container header\n",
		out.String(),
	)
}
