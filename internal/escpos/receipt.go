package escpos

import (
	"fmt"

	"github.com/wfunc/parking-gate/internal/models"
)

// 小票时间格式
const receiptTimeLayout = "02-01-2006 15:04:05"

// ReceiptOptions 小票排版配置
type ReceiptOptions struct {
	Header     []string // 抬头行，居中倍大
	Footer     []string // 落款行，居中
	FeedLines  byte     // 切纸前走纸行数
	FullCut    bool     // 全切（默认半切）
	Symbology  Symbology
	MaxBarcode int // 条码载荷上限，超长保留尾部
}

// EncodeReceipt 编码入场小票
// 固定版式：抬头（倍大居中）→ 票据信息（左对齐）→ 条码（居中）→ 落款 → 切纸。
func EncodeReceipt(ticket *models.Ticket, opts ReceiptOptions) ([]byte, error) {
	e := NewEncoder()
	e.Init()

	e.Align(AlignCenter).DoubleSize()
	for _, line := range opts.Header {
		e.Line(line)
	}
	e.NormalSize().Line("")

	e.Align(AlignLeft)
	e.Line(fmt.Sprintf("Tiket  : %s", ticket.TicketID))
	e.Line(fmt.Sprintf("Plat   : %s", ticket.Plate))
	e.Line(fmt.Sprintf("Jenis  : %s", ticket.VehicleType.APIKind()))
	e.Line(fmt.Sprintf("Masuk  : %s", ticket.IssuedAt.Format(receiptTimeLayout)))
	e.Line("")

	e.Align(AlignCenter)
	payload := TruncateTail(ticket.TicketID, opts.MaxBarcode)
	if err := e.Barcode(opts.Symbology, payload); err != nil {
		return nil, err
	}
	e.Line("")

	for _, line := range opts.Footer {
		e.Line(line)
	}

	e.Feed(opts.FeedLines)
	e.Cut(opts.FullCut)
	return e.Bytes(), nil
}

// EncodeTextReceipt 编码纯文本降级小票
// 条码指令失败或打印机不支持条码时使用：票号以放大文本代替条码，
// 入口人员可凭票号人工核对。
func EncodeTextReceipt(ticket *models.Ticket, opts ReceiptOptions) []byte {
	e := NewEncoder()
	e.Init()

	e.Align(AlignCenter).DoubleSize()
	for _, line := range opts.Header {
		e.Line(line)
	}
	e.NormalSize().Line("")

	e.Align(AlignLeft)
	e.Line(fmt.Sprintf("Plat   : %s", ticket.Plate))
	e.Line(fmt.Sprintf("Jenis  : %s", ticket.VehicleType.APIKind()))
	e.Line(fmt.Sprintf("Masuk  : %s", ticket.IssuedAt.Format(receiptTimeLayout)))
	e.Line("")

	e.Align(AlignCenter).DoubleSize()
	e.Line(ticket.TicketID)
	e.NormalSize().Line("")

	for _, line := range opts.Footer {
		e.Line(line)
	}

	e.Feed(opts.FeedLines)
	e.Cut(opts.FullCut)
	return e.Bytes()
}
