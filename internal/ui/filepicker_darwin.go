//go:build darwin

package ui

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa

#import <Cocoa/Cocoa.h>
#import <stdlib.h>

// runs the panel on the main queue; systray owns the run loop
const char* clipshelfChooseFolder(const char* start) {
    __block const char* chosen = NULL;
    NSString* startPath = start ? [NSString stringWithUTF8String:start] : nil;
    dispatch_semaphore_t done = dispatch_semaphore_create(0);

    dispatch_async(dispatch_get_main_queue(), ^{
        @autoreleasepool {
            [NSApp activateIgnoringOtherApps:YES];

            NSOpenPanel* panel = [NSOpenPanel openPanel];
            panel.canChooseFiles = NO;
            panel.canChooseDirectories = YES;
            panel.canCreateDirectories = YES;
            panel.allowsMultipleSelection = NO;
            panel.message = @"Choose where clipshelf writes history backups";
            panel.prompt = @"Use Folder";
            panel.level = NSFloatingWindowLevel;
            if (startPath.length > 0) {
                panel.directoryURL = [NSURL fileURLWithPath:startPath isDirectory:YES];
            }

            if ([panel runModal] == NSModalResponseOK && panel.URL != nil) {
                chosen = strdup(panel.URL.path.UTF8String);
            }
        }
        dispatch_semaphore_signal(done);
    });

    dispatch_semaphore_wait(done, DISPATCH_TIME_FOREVER);
    return chosen;
}
*/
import "C"

import "unsafe"

// ShowFolderPicker asks for a backup folder, starting in start when set.
// Returns "" if the dialog was cancelled.
func ShowFolderPicker(start string) string {
	var cstart *C.char
	if start != "" {
		cstart = C.CString(start)
		defer C.free(unsafe.Pointer(cstart))
	}

	chosen := C.clipshelfChooseFolder(cstart)
	if chosen == nil {
		return ""
	}
	defer C.free(unsafe.Pointer(chosen))
	return C.GoString(chosen)
}
