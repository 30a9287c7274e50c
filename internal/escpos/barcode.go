package escpos

import (
	"strings"

	"github.com/wfunc/parking-gate/internal/errors"
)

// Symbology 条码制式
type Symbology string

const (
	Code39  Symbology = "code39"
	Code128 Symbology = "code128"
)

// ESC/POS条码类型字节（GS k m 的 m 值，带长度前缀的变体）
const (
	code39Type  = 0x04
	code128Type = 0x49
)

// code39Charset CODE39可打印字符集
const code39Charset = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ-. $/+%"

// TruncateTail 条码载荷超长时保留尾部maxLen个字符
// 服务端票号的区分信息集中在尾部序号，丢头不丢尾。
func TruncateTail(payload string, maxLen int) string {
	if maxLen <= 0 || len(payload) <= maxLen {
		return payload
	}
	return payload[len(payload)-maxLen:]
}

// validateCode39 检查载荷是否落在CODE39字符集内
func validateCode39(payload string) error {
	for _, r := range payload {
		if !strings.ContainsRune(code39Charset, r) {
			return errors.Newf(errors.ErrBarcodePayload,
				"字符 %q 不在CODE39字符集内", r)
		}
	}
	return nil
}

// Barcode 输出条码指令段
// 统一设置HRI位置（条码下方）、高度、宽度，再按制式输出数据段：
//
//	GS H 2              HRI下方
//	GS h 80             高度
//	GS w 2              模块宽度
//	GS k m n data       条码数据（带长度字节）
//
// CODE39数据两端加星号定界；CODE128原样输出。
func (e *Encoder) Barcode(sym Symbology, payload string) error {
	if payload == "" {
		return errors.New(errors.ErrBarcodePayload, "条码载荷为空")
	}

	var typeByte byte
	var data string
	switch sym {
	case Code39:
		upper := strings.ToUpper(payload)
		if err := validateCode39(upper); err != nil {
			return err
		}
		typeByte = code39Type
		data = "*" + upper + "*"
	case Code128:
		if len(payload) > 255 {
			return errors.Newf(errors.ErrBarcodePayload,
				"CODE128载荷过长: %d", len(payload))
		}
		typeByte = code128Type
		data = payload
	default:
		return errors.Newf(errors.ErrBarcodePayload, "不支持的条码制式: %s", sym)
	}

	if len(data) > 255 {
		return errors.Newf(errors.ErrBarcodePayload, "条码载荷过长: %d", len(data))
	}

	e.buf.Write([]byte{gs, 'H', 0x02})
	e.buf.Write([]byte{gs, 'h', 0x50})
	e.buf.Write([]byte{gs, 'w', 0x02})
	e.buf.Write([]byte{gs, 'k', typeByte, byte(len(data))})
	e.buf.WriteString(data)
	return nil
}

// ParseSymbology 解析条码制式配置值
func ParseSymbology(s string) (Symbology, bool) {
	switch Symbology(strings.ToLower(s)) {
	case Code39:
		return Code39, true
	case Code128:
		return Code128, true
	}
	return Code39, false
}
