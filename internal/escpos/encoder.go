package escpos

import "bytes"

// ESC/POS 控制字节
const (
	esc = 0x1B
	gs  = 0x1D
)

// 对齐方式
const (
	AlignLeft   = 0x00
	AlignCenter = 0x01
	AlignRight  = 0x02
)

// Encoder ESC/POS指令编码器
// 只负责拼字节，不做IO；输出交给打印机汇聚端整体写入。
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder 创建编码器
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Init 打印机初始化 ESC @
func (e *Encoder) Init() *Encoder {
	e.buf.Write([]byte{esc, '@'})
	return e
}

// Align 设置对齐 ESC a n
func (e *Encoder) Align(mode byte) *Encoder {
	e.buf.Write([]byte{esc, 'a', mode})
	return e
}

// DoubleSize 倍宽倍高 ESC ! 0x30
func (e *Encoder) DoubleSize() *Encoder {
	e.buf.Write([]byte{esc, '!', 0x30})
	return e
}

// NormalSize 恢复正常字号 ESC ! 0x00
func (e *Encoder) NormalSize() *Encoder {
	e.buf.Write([]byte{esc, '!', 0x00})
	return e
}

// Text 写入原始文本
func (e *Encoder) Text(s string) *Encoder {
	e.buf.WriteString(s)
	return e
}

// Line 写入一行文本并换行
func (e *Encoder) Line(s string) *Encoder {
	e.buf.WriteString(s)
	e.buf.WriteByte('\n')
	return e
}

// Feed 走纸n行 ESC d n
func (e *Encoder) Feed(n byte) *Encoder {
	e.buf.Write([]byte{esc, 'd', n})
	return e
}

// Cut 切纸 GS V
// 默认半切（留连接点），full为true时全切。
func (e *Encoder) Cut(full bool) *Encoder {
	if full {
		e.buf.Write([]byte{gs, 'V', 0x00})
	} else {
		e.buf.Write([]byte{gs, 'V', 'A', 0x00})
	}
	return e
}

// Raw 写入任意字节
func (e *Encoder) Raw(data []byte) *Encoder {
	e.buf.Write(data)
	return e
}

// Bytes 返回累积的指令流
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Len 返回当前字节数
func (e *Encoder) Len() int {
	return e.buf.Len()
}
