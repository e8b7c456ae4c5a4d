//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
	"github.com/moutend/go-wca/pkg/wca"
	"golang.org/x/sys/windows"
)

var (
	modUser32            = windows.NewLazySystemDLL("user32.dll")
	procKeybdEvent       = modUser32.NewProc("keybd_event")
	procGetAsyncKeyState = modUser32.NewProc("GetAsyncKeyState")

	modWinmm             = windows.NewLazySystemDLL("winmm.dll")
	procWaveOutGetVolume = modWinmm.NewProc("waveOutGetVolume")
)

const (
	vkVolumeMute   = 0xAD
	keyEventfKeyUp = 0x0002

	audioSessionStateActive = 1

	stopKeyPollInterval = 50 * time.Millisecond
)

// Native returns the Windows bindings.
func Native(commandTimeout time.Duration) Bindings {
	return Bindings{
		Endpoint: coreAudioEndpoint{},
		Sessions: coreAudioSessions{},
		Procs:    toolhelpProcesses{},
		Mixer:    waveOutMixer{},
		Player:   wmpAutomation{},
		Keys:     keybdEventSender{},
		Runner:   NewExecRunner(commandTimeout),
		StopKey:  asyncKeyState{},
	}
}

func hideWindow(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{HideWindow: true}
}

// withCOM runs fn on a locked OS thread with COM initialized.
func withCOM(fn func() error) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		// S_FALSE: already initialized on this thread
		var oleErr *ole.OleError
		if !errors.As(err, &oleErr) || oleErr.Code() != 1 {
			return fmt.Errorf("CoInitializeEx: %w", err)
		}
	}
	defer ole.CoUninitialize()

	return fn()
}

// withDefaultDevice opens the default render endpoint.
func withDefaultDevice(fn func(mmd *wca.IMMDevice) error) error {
	return withCOM(func() error {
		var mmde *wca.IMMDeviceEnumerator
		if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &mmde); err != nil {
			return fmt.Errorf("create device enumerator: %w", err)
		}
		defer mmde.Release()

		var mmd *wca.IMMDevice
		if err := mmde.GetDefaultAudioEndpoint(wca.ERender, wca.EConsole, &mmd); err != nil {
			return fmt.Errorf("get default endpoint: %w", err)
		}
		defer mmd.Release()

		return fn(mmd)
	})
}

func withEndpointVolume(fn func(aev *wca.IAudioEndpointVolume) error) error {
	return withDefaultDevice(func(mmd *wca.IMMDevice) error {
		var aev *wca.IAudioEndpointVolume
		if err := mmd.Activate(wca.IID_IAudioEndpointVolume, wca.CLSCTX_ALL, nil, &aev); err != nil {
			return fmt.Errorf("activate endpoint volume: %w", err)
		}
		defer aev.Release()
		return fn(aev)
	})
}

type coreAudioEndpoint struct{}

func (coreAudioEndpoint) Volume(ctx context.Context) (VolumeState, error) {
	var state VolumeState
	err := withEndpointVolume(func(aev *wca.IAudioEndpointVolume) error {
		var level float32
		if err := aev.GetMasterVolumeLevelScalar(&level); err != nil {
			return fmt.Errorf("get master volume: %w", err)
		}
		var muted bool
		if err := aev.GetMute(&muted); err != nil {
			return fmt.Errorf("get mute: %w", err)
		}
		state = VolumeState{Level: float64(level), Muted: muted}
		return nil
	})
	return state, err
}

func (coreAudioEndpoint) SetMute(ctx context.Context, muted bool) error {
	return withEndpointVolume(func(aev *wca.IAudioEndpointVolume) error {
		return aev.SetMute(muted, nil)
	})
}

func (coreAudioEndpoint) SetLevel(ctx context.Context, level float64) error {
	return withEndpointVolume(func(aev *wca.IAudioEndpointVolume) error {
		return aev.SetMasterVolumeLevelScalar(float32(level), nil)
	})
}

type coreAudioSessions struct{}

// eachSession visits every session on the default endpoint.
func eachSession(fn func(asc2 *wca.IAudioSessionControl2, sav *wca.ISimpleAudioVolume) error) error {
	return withDefaultDevice(func(mmd *wca.IMMDevice) error {
		var asm2 *wca.IAudioSessionManager2
		if err := mmd.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &asm2); err != nil {
			return fmt.Errorf("activate session manager: %w", err)
		}
		defer asm2.Release()

		var ase *wca.IAudioSessionEnumerator
		if err := asm2.GetSessionEnumerator(&ase); err != nil {
			return fmt.Errorf("get session enumerator: %w", err)
		}
		defer ase.Release()

		var count int
		if err := ase.GetCount(&count); err != nil {
			return fmt.Errorf("get session count: %w", err)
		}

		for i := 0; i < count; i++ {
			var asc *wca.IAudioSessionControl
			if err := ase.GetSession(i, &asc); err != nil {
				continue
			}

			d2, err := asc.QueryInterface(wca.IID_IAudioSessionControl2)
			if err != nil {
				asc.Release()
				continue
			}
			asc2 := (*wca.IAudioSessionControl2)(unsafe.Pointer(d2))

			dv, err := asc.QueryInterface(wca.IID_ISimpleAudioVolume)
			if err != nil {
				asc2.Release()
				asc.Release()
				continue
			}
			sav := (*wca.ISimpleAudioVolume)(unsafe.Pointer(dv))

			err = fn(asc2, sav)
			sav.Release()
			asc2.Release()
			asc.Release()
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (coreAudioSessions) Sessions(ctx context.Context) ([]Session, error) {
	names, err := processNames()
	if err != nil {
		names = map[uint32]string{}
	}

	var sessions []Session
	err = eachSession(func(asc2 *wca.IAudioSessionControl2, sav *wca.ISimpleAudioVolume) error {
		var s Session
		if err := asc2.GetProcessId(&s.PID); err != nil {
			return nil
		}
		var state uint32
		if err := asc2.GetState(&state); err == nil {
			s.Active = state == audioSessionStateActive
		}
		var vol float32
		if err := sav.GetMasterVolume(&vol); err == nil {
			s.Volume = float64(vol)
		}
		_ = sav.GetMute(&s.Muted)
		s.ProcessName = names[s.PID]
		sessions = append(sessions, s)
		return nil
	})
	return sessions, err
}

func (coreAudioSessions) SetSessionMute(ctx context.Context, muted bool) (int, error) {
	n := 0
	err := eachSession(func(_ *wca.IAudioSessionControl2, sav *wca.ISimpleAudioVolume) error {
		if err := sav.SetMute(muted, nil); err == nil {
			n++
		}
		return nil
	})
	return n, err
}

type toolhelpProcesses struct{}

func (toolhelpProcesses) Processes(ctx context.Context) ([]Process, error) {
	names, err := processNames()
	if err != nil {
		return nil, err
	}
	procs := make([]Process, 0, len(names))
	for pid, name := range names {
		procs = append(procs, Process{PID: pid, Name: name})
	}
	return procs, nil
}

// processNames snapshots the process table as PID -> lowercase exe name.
func processNames() (map[uint32]string, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("process snapshot: %w", err)
	}
	defer func() { _ = windows.CloseHandle(snap) }()

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	names := make(map[uint32]string)
	if err := windows.Process32First(snap, &entry); err != nil {
		return nil, fmt.Errorf("first process: %w", err)
	}
	for {
		names[entry.ProcessID] = strings.ToLower(windows.UTF16ToString(entry.ExeFile[:]))
		if err := windows.Process32Next(snap, &entry); err != nil {
			if errors.Is(err, windows.ERROR_NO_MORE_FILES) {
				break
			}
			return nil, fmt.Errorf("next process: %w", err)
		}
	}
	return names, nil
}

type waveOutMixer struct{}

func (waveOutMixer) WaveVolume(ctx context.Context) (uint32, error) {
	if err := procWaveOutGetVolume.Find(); err != nil {
		return 0, ErrUnsupported
	}
	var vol uint32
	r, _, _ := procWaveOutGetVolume.Call(0, uintptr(unsafe.Pointer(&vol)))
	if r != 0 {
		return 0, fmt.Errorf("waveOutGetVolume: mmresult %d", r)
	}
	return vol, nil
}

type wmpAutomation struct{}

func (wmpAutomation) PlayState(ctx context.Context) (int, error) {
	state := 0
	err := withCOM(func() error {
		unknown, err := oleutil.CreateObject("WMPlayer.OCX")
		if err != nil {
			return fmt.Errorf("create WMPlayer.OCX: %w", err)
		}
		defer unknown.Release()

		player, err := unknown.QueryInterface(ole.IID_IDispatch)
		if err != nil {
			return fmt.Errorf("query IDispatch: %w", err)
		}
		defer player.Release()

		v, err := oleutil.GetProperty(player, "playState")
		if err != nil {
			return fmt.Errorf("get playState: %w", err)
		}
		defer func() { _ = v.Clear() }()

		state = int(v.Val)
		return nil
	})
	return state, err
}

type keybdEventSender struct{}

func (keybdEventSender) PressMediaMute(ctx context.Context) error {
	if err := procKeybdEvent.Find(); err != nil {
		return ErrUnsupported
	}
	_, _, _ = procKeybdEvent.Call(vkVolumeMute, 0, 0, 0)
	_, _, _ = procKeybdEvent.Call(vkVolumeMute, 0, keyEventfKeyUp, 0)
	return nil
}

type asyncKeyState struct{}

// Watch polls GetAsyncKeyState so the key is seen whichever window has focus.
func (asyncKeyState) Watch(ctx context.Context, key rune) <-chan struct{} {
	ch := make(chan struct{}, 1)
	if procGetAsyncKeyState.Find() != nil {
		return ch
	}
	vk := uintptr(virtualKey(key))

	go func() {
		ticker := time.NewTicker(stopKeyPollInterval)
		defer ticker.Stop()
		wasDown := false
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r, _, _ := procGetAsyncKeyState.Call(vk)
				down := r&0x8000 != 0
				if down && !wasDown {
					select {
					case ch <- struct{}{}:
					default:
					}
				}
				wasDown = down
			}
		}
	}()
	return ch
}

// virtualKey maps a letter to its virtual-key code, which for A-Z is
// the uppercase ASCII value.
func virtualKey(r rune) rune {
	if r >= 'a' && r <= 'z' {
		return r - 'a' + 'A'
	}
	return r
}
