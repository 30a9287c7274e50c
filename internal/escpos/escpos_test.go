package escpos

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/models"
)

func TestEncoderBasicCommands(t *testing.T) {
	e := NewEncoder()
	e.Init().Align(AlignCenter).DoubleSize().Line("PARKIR").NormalSize().Feed(3).Cut(false)

	want := []byte{
		0x1B, 0x40, // init
		0x1B, 0x61, 0x01, // center
		0x1B, 0x21, 0x30, // double
	}
	want = append(want, []byte("PARKIR\n")...)
	want = append(want, 0x1B, 0x21, 0x00) // normal
	want = append(want, 0x1B, 0x64, 0x03) // feed 3
	want = append(want, 0x1D, 0x56, 0x41, 0x00)

	assert.Equal(t, want, e.Bytes())
}

func TestCutVariants(t *testing.T) {
	partial := NewEncoder()
	partial.Cut(false)
	assert.Equal(t, []byte{0x1D, 0x56, 0x41, 0x00}, partial.Bytes())

	full := NewEncoder()
	full.Cut(true)
	assert.Equal(t, []byte{0x1D, 0x56, 0x00}, full.Bytes())
}

func TestBarcodeCode39(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.Barcode(Code39, "OFF000001"))

	out := e.Bytes()
	want := []byte{
		0x1D, 0x48, 0x02, // HRI below
		0x1D, 0x68, 0x50, // height 80
		0x1D, 0x77, 0x02, // width 2
		0x1D, 0x6B, 0x04, 0x0B, // CODE39, length 11
	}
	want = append(want, []byte("*OFF000001*")...)
	assert.Equal(t, want, out)
}

func TestBarcodeCode39Uppercases(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.Barcode(Code39, "off000001"))
	assert.True(t, bytes.Contains(e.Bytes(), []byte("*OFF000001*")))
}

func TestBarcodeCode39RejectsInvalidChars(t *testing.T) {
	e := NewEncoder()
	err := e.Barcode(Code39, "TKT#001")
	require.Error(t, err)
	assert.Equal(t, errors.ErrBarcodePayload, errors.GetCode(err))
	assert.Equal(t, 0, e.Len(), "失败时不留下半截指令")
}

func TestBarcodeCode128(t *testing.T) {
	e := NewEncoder()
	require.NoError(t, e.Barcode(Code128, "TKT-0001#x"))

	out := e.Bytes()
	idx := bytes.Index(out, []byte{0x1D, 0x6B, 0x49})
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, byte(10), out[idx+3], "长度字节等于载荷长度")
	assert.Equal(t, []byte("TKT-0001#x"), out[idx+4:idx+14])
}

func TestBarcodeEmptyPayload(t *testing.T) {
	e := NewEncoder()
	err := e.Barcode(Code39, "")
	require.Error(t, err)
	assert.Equal(t, errors.ErrBarcodePayload, errors.GetCode(err))
}

func TestTruncateTail(t *testing.T) {
	assert.Equal(t, "0301-00042", TruncateTail("TKT20240301-00042", 10))
	assert.Equal(t, "OFF000001", TruncateTail("OFF000001", 10))
	assert.Equal(t, "ABC", TruncateTail("ABC", 0), "0表示不截断")
}

func testTicket() *models.Ticket {
	return &models.Ticket{
		TicketID:    "OFF000001",
		Plate:       "B1234XYZ",
		VehicleType: models.VehicleCar,
		IssuedAt:    time.Date(2024, 3, 1, 8, 15, 0, 0, time.Local),
		Origin:      models.OriginOffline,
	}
}

func testOptions() ReceiptOptions {
	return ReceiptOptions{
		Header:     []string{"PARKIR RSI BNA"},
		Footer:     []string{"Terima kasih", "Jangan hilangkan tiket ini"},
		FeedLines:  3,
		Symbology:  Code39,
		MaxBarcode: 10,
	}
}

func TestEncodeReceipt(t *testing.T) {
	out, err := EncodeReceipt(testTicket(), testOptions())
	require.NoError(t, err)

	// 以初始化开头，以切纸结尾
	assert.Equal(t, []byte{0x1B, 0x40}, out[:2])
	assert.Equal(t, []byte{0x1D, 0x56, 0x41, 0x00}, out[len(out)-4:])

	assert.True(t, bytes.Contains(out, []byte("PARKIR RSI BNA")))
	assert.True(t, bytes.Contains(out, []byte("Tiket  : OFF000001")))
	assert.True(t, bytes.Contains(out, []byte("Plat   : B1234XYZ")))
	assert.True(t, bytes.Contains(out, []byte("Masuk  : 01-03-2024 08:15:00")))
	assert.True(t, bytes.Contains(out, []byte("*OFF000001*")))
	assert.True(t, bytes.Contains(out, []byte("Jangan hilangkan tiket ini")))
}

// 长票号条码只保留尾部，但票面文本仍打印完整票号
func TestEncodeReceiptTruncatesLongBarcode(t *testing.T) {
	ticket := testTicket()
	ticket.TicketID = "TKT20240301-00042"

	out, err := EncodeReceipt(ticket, testOptions())
	require.NoError(t, err)
	assert.True(t, bytes.Contains(out, []byte("*0301-00042*")))
	assert.True(t, bytes.Contains(out, []byte("Tiket  : TKT20240301-00042")))
}

func TestEncodeReceiptInvalidBarcode(t *testing.T) {
	ticket := testTicket()
	ticket.TicketID = "TKT_0001"

	_, err := EncodeReceipt(ticket, testOptions())
	require.Error(t, err)
	assert.Equal(t, errors.ErrBarcodePayload, errors.GetCode(err))
}

func TestEncodeTextReceiptHasNoBarcodeCommands(t *testing.T) {
	out := EncodeTextReceipt(testTicket(), testOptions())

	assert.False(t, bytes.Contains(out, []byte{0x1D, 0x6B}), "降级小票不含条码指令")
	assert.True(t, bytes.Contains(out, []byte("OFF000001")))
	assert.Equal(t, []byte{0x1D, 0x56, 0x41, 0x00}, out[len(out)-4:])
}

func TestParseSymbology(t *testing.T) {
	sym, ok := ParseSymbology("CODE128")
	assert.True(t, ok)
	assert.Equal(t, Code128, sym)

	_, ok = ParseSymbology("qr")
	assert.False(t, ok)
}
