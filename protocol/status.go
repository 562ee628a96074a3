// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package protocol

import (
	"strconv"
)

// Status is the kind of an event, as stored in the mailbox status word.
//
// Payload layouts, in encoding order:
//
//	StatusNotifyKey                    key string, keyCode int, ctrl, shift, alt, meta bool
//	StatusNotifyResize                 width int, height int
//	StatusNotifyOpenFileBufComplete    filename string, bufID int
//	StatusNotifyClipboardWriteComplete cannotSend bool, bufID int
//	StatusRequestCmdline               cmdline string
//	StatusRequestSharedBuf             byteLength int
//	StatusNotifyErrorOutput            bufID int
//	StatusNotifyEvalFuncRet            isError bool, bufID int
type Status int32

const (
	StatusNotSet Status = iota
	StatusNotifyKey
	StatusNotifyResize
	StatusNotifyOpenFileBufComplete
	StatusNotifyClipboardWriteComplete
	StatusRequestCmdline
	StatusRequestSharedBuf
	StatusNotifyErrorOutput
	StatusNotifyEvalFuncRet
)

func (x Status) String() string {
	switch x {
	case StatusNotSet:
		return `NOT_SET`
	case StatusNotifyKey:
		return `NOTIFY_KEY`
	case StatusNotifyResize:
		return `NOTIFY_RESIZE`
	case StatusNotifyOpenFileBufComplete:
		return `NOTIFY_OPEN_FILE_BUF_COMPLETE`
	case StatusNotifyClipboardWriteComplete:
		return `NOTIFY_CLIPBOARD_WRITE_COMPLETE`
	case StatusRequestCmdline:
		return `REQUEST_CMDLINE`
	case StatusRequestSharedBuf:
		return `REQUEST_SHARED_BUF`
	case StatusNotifyErrorOutput:
		return `NOTIFY_ERROR_OUTPUT`
	case StatusNotifyEvalFuncRet:
		return `NOTIFY_EVAL_FUNC_RET`
	default:
		return `STATUS(` + strconv.Itoa(int(x)) + `)`
	}
}

// Valid reports whether x is a known event kind (excluding StatusNotSet).
func (x Status) Valid() bool {
	return x > StatusNotSet && x <= StatusNotifyEvalFuncRet
}
