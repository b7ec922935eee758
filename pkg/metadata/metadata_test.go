package metadata_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/zetetos/ncm-unlock/pkg/metadata"
)

const sampleJSON = `{
	"musicId": 1357785909,
	"musicName": "Test Track",
	"artist": [["Artist One", 12], ["Artist Two", 34]],
	"albumId": 99,
	"album": "Test Album",
	"albumPic": "https://example.invalid/cover.jpg",
	"bitrate": 320000,
	"duration": 215000,
	"alias": [],
	"transNames": [],
	"format": "flac"
}`

type MetadataTestSuite struct {
	suite.Suite
}

func TestMetadataTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(MetadataTestSuite))
}

func (suite *MetadataTestSuite) TestParseReadsKnownFields() {
	// Act
	record, err := metadata.Parse([]byte(sampleJSON))

	// Assert
	suite.Require().NoError(err)
	suite.Equal("flac", record.Format())
	suite.Equal("Test Track", record.Title())
	suite.Equal("Test Album", record.Album())
	suite.Equal([]string{"Artist One", "Artist Two"}, record.Artists())
	suite.Equal("https://example.invalid/cover.jpg", record.AlbumPic())
	suite.Equal(320000, record.Bitrate())
	suite.Equal(215*time.Second, record.Duration())
}

func (suite *MetadataTestSuite) TestFormatDefaultsToMP3() {
	// Arrange
	records := []metadata.Record{
		nil,
		{},
		{"format": ""},
		{"format": 12},
	}

	for _, record := range records {
		// Act
		got := record.Format()

		// Assert
		suite.Equal(metadata.DefaultFormat, got)
	}
}

func (suite *MetadataTestSuite) TestParseRejectsNonObjects() {
	testCases := []string{"", "[]", "null", `"flac"`, `{"format": }`}

	for _, input := range testCases {
		// Act
		_, err := metadata.Parse([]byte(input))

		// Assert
		suite.Error(err, "input %q", input)
	}
}

func (suite *MetadataTestSuite) TestAccessorsTolerateUnexpectedTypes() {
	// Arrange
	record := metadata.Record{
		"musicName": 42,
		"artist":    "not a list",
		"bitrate":   "128000",
		"duration":  true,
	}

	// Act & Assert
	suite.Empty(record.Title())
	suite.Nil(record.Artists())
	suite.Equal(128000, record.Bitrate())
	suite.Zero(record.Duration())
}

func (suite *MetadataTestSuite) TestEmbeddedSchemaAcceptsSample() {
	// Arrange
	validator, err := metadata.NewValidator(nil)
	suite.Require().NoError(err)

	record, err := metadata.Parse([]byte(sampleJSON))
	suite.Require().NoError(err)

	// Act
	err = validator.Validate(record)

	// Assert
	suite.NoError(err)
}

func (suite *MetadataTestSuite) TestEmbeddedSchemaRejectsMissingFormat() {
	// Arrange
	validator, err := metadata.NewValidator(nil)
	suite.Require().NoError(err)

	record, err := metadata.Parse([]byte(`{"musicName": "x"}`))
	suite.Require().NoError(err)

	// Act
	err = validator.Validate(record)

	// Assert
	suite.ErrorContains(err, "schema validation")
}

func (suite *MetadataTestSuite) TestEmbeddedSchemaFormatLength() {
	// Arrange
	validator, err := metadata.NewValidator(nil)
	suite.Require().NoError(err)

	longest := strings.Repeat("a", metadata.MaxFormatLen)

	// Act
	errLongest := validator.Validate(metadata.Record{"format": longest})
	errTooLong := validator.Validate(metadata.Record{"format": longest + "a"})

	// Assert
	suite.NoError(errLongest)
	suite.ErrorContains(errTooLong, "schema validation")
}

func (suite *MetadataTestSuite) TestInvalidSchemaReturnsError() {
	// Act
	_, err := metadata.NewValidator([]byte(`{not json`))

	// Assert
	suite.Error(err)
}
