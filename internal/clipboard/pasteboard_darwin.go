//go:build darwin

package clipboard

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa

#import <Cocoa/Cocoa.h>
#import <stdlib.h>

long clipshelfChangeCount() {
    return (long)[[NSPasteboard generalPasteboard] changeCount];
}

const char* clipshelfReadText() {
    @autoreleasepool {
        NSString *text = [[NSPasteboard generalPasteboard] stringForType:NSPasteboardTypeString];
        if (text == nil) {
            return NULL;
        }
        return strdup([text UTF8String]);
    }
}

// kind 0 = PNG, 1 = TIFF
void* clipshelfReadImage(int kind, int* length) {
    @autoreleasepool {
        NSPasteboardType type = kind == 0 ? NSPasteboardTypePNG : NSPasteboardTypeTIFF;
        NSData *data = [[NSPasteboard generalPasteboard] dataForType:type];
        if (data == nil || [data length] == 0) {
            *length = 0;
            return NULL;
        }
        *length = (int)[data length];
        void *buffer = malloc(*length);
        memcpy(buffer, [data bytes], *length);
        return buffer;
    }
}

const char* clipshelfFrontmostApp() {
    @autoreleasepool {
        NSRunningApplication *app = [[NSWorkspace sharedWorkspace] frontmostApplication];
        if (app == nil || [app localizedName] == nil) {
            return NULL;
        }
        return strdup([[app localizedName] UTF8String]);
    }
}

// Password managers mark their entries as transient or concealed
int clipshelfHasConcealedData() {
    NSArray *types = [[NSPasteboard generalPasteboard] types];
    for (NSString *type in types) {
        if ([type containsString:@"org.nspasteboard.TransientType"] ||
            [type containsString:@"org.nspasteboard.ConcealedType"]) {
            return 1;
        }
    }
    return 0;
}

void clipshelfFree(void* ptr) {
    free(ptr);
}
*/
import "C"

import (
	"log/slog"
	"unsafe"

	"golang.design/x/clipboard"
)

type darwinPasteboard struct{}

// New returns the macOS NSPasteboard adapter
func New() Pasteboard {
	if err := clipboard.Init(); err != nil {
		slog.Warn("clipboard init failed, writes disabled", "err", err)
	}
	return darwinPasteboard{}
}

func (darwinPasteboard) ChangeCount() int {
	return int(C.clipshelfChangeCount())
}

func (darwinPasteboard) ReadText() (string, bool) {
	if C.clipshelfHasConcealedData() == 1 {
		return "", false
	}
	cstr := C.clipshelfReadText()
	if cstr == nil {
		return "", false
	}
	defer C.clipshelfFree(unsafe.Pointer(cstr))
	return C.GoString(cstr), true
}

func (darwinPasteboard) ReadImage() (Image, bool) {
	if C.clipshelfHasConcealedData() == 1 {
		return Image{}, false
	}
	if data, ok := readImage(0); ok {
		return Image{Format: ImagePNG, Data: data}, true
	}
	if data, ok := readImage(1); ok {
		return Image{Format: ImageTIFF, Data: data}, true
	}
	return Image{}, false
}

func readImage(kind C.int) ([]byte, bool) {
	var length C.int
	ptr := C.clipshelfReadImage(kind, &length)
	if ptr == nil || length == 0 {
		return nil, false
	}
	defer C.clipshelfFree(ptr)
	return C.GoBytes(ptr, length), true
}

func (darwinPasteboard) FrontmostApp() string {
	cstr := C.clipshelfFrontmostApp()
	if cstr == nil {
		return ""
	}
	defer C.clipshelfFree(unsafe.Pointer(cstr))
	return C.GoString(cstr)
}

func (darwinPasteboard) WriteText(text string) error {
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

func (darwinPasteboard) WriteImage(png []byte) error {
	if len(png) == 0 {
		return ErrUnsupportedImage
	}
	clipboard.Write(clipboard.FmtImage, png)
	return nil
}
