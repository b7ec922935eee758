package container_test

import (
	"crypto/aes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/zetetos/ncm-unlock/internal/container"
	"github.com/zetetos/ncm-unlock/internal/ecb"
	"github.com/zetetos/ncm-unlock/internal/keybox"
	"github.com/zetetos/ncm-unlock/pkg/metadata"
)

type ContainerTestSuite struct {
	suite.Suite
	source container.Source
}

func TestContainerTestSuite(t *testing.T) {
	t.Parallel()
	suite.Run(t, new(ContainerTestSuite))
}

func (suite *ContainerTestSuite) SetupTest() {
	suite.source = container.Source{
		Key:      []byte("123456789012345678901234567890E7fT49x7dof9OKCgg9cdvhEuezy3iZCL1nFvBFd1T4uSktAJKmwZXsijPbijliionVUXXg9plTbXEclAE9Lb"),
		Metadata: map[string]any{"format": "flac", "musicName": "Track"},
		Checksum: 0xdeadbeef,
		Image:    []byte("image bytes"),
		Audio:    []byte("plain audio payload that is long enough to wrap past a few bytes"),
	}
}

func (suite *ContainerTestSuite) encode() []byte {
	buf, err := container.Encode(suite.source)
	suite.Require().NoError(err)

	return buf
}

// keyBlockEnd returns the offset just past the key block.
func keyBlockEnd(buf []byte) int {
	return 14 + int(binary.LittleEndian.Uint32(buf[10:14]))
}

func (suite *ContainerTestSuite) TestParseRecoversEveryField() {
	// Arrange
	buf := suite.encode()

	// Act
	got, err := container.Parse(buf)

	// Assert
	suite.Require().NoError(err)
	suite.Equal(suite.source.Key, got.Key)
	suite.Require().NoError(got.MetadataErr)
	suite.Equal("flac", got.Metadata.Format())
	suite.Equal("Track", got.Metadata.Title())
	suite.Equal(uint32(0xdeadbeef), got.Checksum)
	suite.Equal(suite.source.Image, got.Image)
	suite.Equal(int64(len(buf)-len(suite.source.Audio)), got.PayloadOffset)
	suite.Len(got.Payload, len(suite.source.Audio))

	c, err := keybox.NewCipher(got.Key)
	suite.Require().NoError(err)

	plain := make([]byte, len(got.Payload))
	c.XORKeyStream(plain, got.Payload, 0)
	suite.Equal(suite.source.Audio, plain)
}

func (suite *ContainerTestSuite) TestParseDoesNotModifyInput() {
	// Arrange
	buf := suite.encode()
	orig := append([]byte(nil), buf...)

	// Act
	_, err := container.Parse(buf)

	// Assert
	suite.Require().NoError(err)
	suite.Equal(orig, buf)
}

func (suite *ContainerTestSuite) TestBadMagicReturnsInvalidHeader() {
	testCases := [][]byte{
		nil,
		[]byte("CTENF"),
		[]byte("CTENFDAX0000000000000000"),
	}

	for _, buf := range testCases {
		// Act
		_, err := container.Parse(buf)

		// Assert
		suite.ErrorIs(err, container.ErrInvalidHeader)
	}
}

func (suite *ContainerTestSuite) TestOversizedKeyLengthReturnsOutOfBounds() {
	// Arrange
	buf := suite.encode()
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(buf)))

	// Act
	_, err := container.Parse(buf)

	// Assert
	suite.ErrorIs(err, container.ErrOutOfBounds)
}

func (suite *ContainerTestSuite) TestOversizedMetadataLengthReturnsOutOfBounds() {
	// Arrange
	buf := suite.encode()
	off := keyBlockEnd(buf)
	binary.LittleEndian.PutUint32(buf[off:off+4], 0xffffffff)

	// Act
	_, err := container.Parse(buf)

	// Assert
	suite.ErrorIs(err, container.ErrOutOfBounds)
}

func (suite *ContainerTestSuite) TestTruncatedAfterMetadataReturnsOutOfBounds() {
	// Arrange
	buf := suite.encode()
	off := keyBlockEnd(buf)
	metaEnd := off + 4 + int(binary.LittleEndian.Uint32(buf[off:off+4]))

	// Act
	_, err := container.Parse(buf[:metaEnd+2])

	// Assert
	suite.ErrorIs(err, container.ErrOutOfBounds)
}

func keyContainer(block []byte) []byte {
	masked := make([]byte, len(block))
	for i, b := range block {
		masked[i] = b ^ 0x64
	}

	buf := []byte("CTENFDAM\x00\x00")
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(masked))) //nolint:gosec // test data
	buf = append(buf, masked...)

	return buf
}

func (suite *ContainerTestSuite) TestBadKeyPaddingReturnsKeyRecoveryError() {
	// Arrange
	block, err := aes.NewCipher([]byte("hzHRAmso5kInbaxW"))
	suite.Require().NoError(err)

	plain := []byte("neteasecloudmus\x00")
	ciphertext := make([]byte, aes.BlockSize)
	block.Encrypt(ciphertext, plain)

	// Act
	_, err = container.Parse(keyContainer(ciphertext))

	// Assert
	suite.ErrorIs(err, container.ErrKeyRecovery)
	suite.ErrorIs(err, ecb.ErrPadding)
}

func (suite *ContainerTestSuite) TestKeyWithoutMaterialReturnsKeyRecoveryError() {
	// Arrange
	ciphertext, err := ecb.EncryptECB([]byte("neteasecloudmusic"), []byte("hzHRAmso5kInbaxW"))
	suite.Require().NoError(err)

	// Act
	_, err = container.Parse(keyContainer(ciphertext))

	// Assert
	suite.ErrorIs(err, container.ErrKeyRecovery)
}

func (suite *ContainerTestSuite) TestKeyBlockNotBlockAlignedReturnsKeyRecoveryError() {
	// Arrange
	buf := []byte("CTENFDAM\x00\x00\x03\x00\x00\x00abc")

	// Act
	_, err := container.Parse(buf)

	// Assert
	suite.ErrorIs(err, container.ErrKeyRecovery)
}

func (suite *ContainerTestSuite) TestInvalidBase64MetadataDegrades() {
	// Arrange
	raw := []byte("163 key(Don't modify):!!!not base64!!!")
	for i := range raw {
		raw[i] ^= 0x63
	}

	suite.source.Metadata = nil
	suite.source.RawMetadata = raw
	buf := suite.encode()

	// Act
	got, err := container.Parse(buf)

	// Assert
	suite.Require().NoError(err)
	suite.ErrorIs(got.MetadataErr, container.ErrMetadataDecode)
	suite.Empty(got.Metadata)
	suite.Equal(metadata.DefaultFormat, got.Metadata.Format())
	suite.Equal(suite.source.Image, got.Image)
	suite.Len(got.Payload, len(suite.source.Audio))
}

func (suite *ContainerTestSuite) TestShortMetadataBlockDegrades() {
	// Arrange
	suite.source.Metadata = nil
	suite.source.RawMetadata = []byte{0x01, 0x02}
	buf := suite.encode()

	// Act
	got, err := container.Parse(buf)

	// Assert
	suite.Require().NoError(err)
	suite.ErrorIs(got.MetadataErr, container.ErrMetadataDecode)
}

func (suite *ContainerTestSuite) TestEmptyMetadataBlockIsNotAnError() {
	// Arrange
	suite.source.Metadata = nil
	buf := suite.encode()

	// Act
	got, err := container.Parse(buf)

	// Assert
	suite.Require().NoError(err)
	suite.NoError(got.MetadataErr)
	suite.Equal(metadata.DefaultFormat, got.Metadata.Format())
}

func (suite *ContainerTestSuite) TestValidatorRejectionDegrades() {
	// Arrange
	validator, err := metadata.NewValidator(nil)
	suite.Require().NoError(err)

	suite.source.Metadata = map[string]any{"musicName": "no format here"}
	buf := suite.encode()

	// Act
	got, err := container.Parse(buf, container.WithValidator(validator))

	// Assert
	suite.Require().NoError(err)
	suite.ErrorIs(got.MetadataErr, container.ErrMetadataDecode)
	suite.Empty(got.Metadata)
}

func (suite *ContainerTestSuite) TestEmptyPayload() {
	// Arrange
	suite.source.Audio = nil
	buf := suite.encode()

	// Act
	got, err := container.Parse(buf)

	// Assert
	suite.Require().NoError(err)
	suite.Empty(got.Payload)
	suite.Equal(int64(len(buf)), got.PayloadOffset)
}
