package settings

// Kind tags one record in the settings stream. The set is closed: payload
// sizes are kind-dependent, so an unrecognised tag cannot be skipped
// without desynchronising the stream and is a hard error.
type Kind uint32

// The full tag space, legacy codes included. Names follow the host
// application's own block identifiers.
const (
	KindKey                      Kind = 0x00
	KindUser                     Kind = 0x01
	KindDcOptionOldOld           Kind = 0x02
	KindChatSizeMaxOld           Kind = 0x03
	KindMutePeerOld              Kind = 0x04
	KindSendKeyOld               Kind = 0x05
	KindAutoStart                Kind = 0x06
	KindStartMinimized           Kind = 0x07
	KindSoundFlashBounceNotify   Kind = 0x08
	KindWorkModeOld              Kind = 0x09
	KindSeenTrayTooltip          Kind = 0x0a
	KindDesktopNotifyOld         Kind = 0x0b
	KindAutoUpdate               Kind = 0x0c
	KindLastUpdateCheck          Kind = 0x0d
	KindWindowPositionOld        Kind = 0x0e
	KindConnectionTypeOldOld     Kind = 0x0f
	KindDefaultAttach            Kind = 0x11
	KindCatsAndDogsOld           Kind = 0x12
	KindReplaceEmojiOld          Kind = 0x13
	KindAskDownloadPathOld       Kind = 0x14
	KindDownloadPathOldOld       Kind = 0x15
	KindScaleOld                 Kind = 0x16
	KindEmojiTabOld              Kind = 0x17
	KindRecentEmojiOldOldOld     Kind = 0x18
	KindLoggedPhoneNumberOld     Kind = 0x19
	KindMutedPeersOld            Kind = 0x1a
	KindNotifyViewOld            Kind = 0x1c
	KindSendToMenu               Kind = 0x1d
	KindCompressPastedImageOld   Kind = 0x1e
	KindLangOld                  Kind = 0x1f
	KindLangFileOld              Kind = 0x20
	KindTileBackgroundOld        Kind = 0x21
	KindAutoLockOld              Kind = 0x22
	KindDialogLastPath           Kind = 0x23
	KindRecentEmojiOldOld        Kind = 0x24
	KindEmojiVariantsOldOld      Kind = 0x25
	KindRecentStickers           Kind = 0x26
	KindDcOptionOld              Kind = 0x27
	KindTryIPv6Old               Kind = 0x28
	KindSongVolumeOld            Kind = 0x29
	KindWindowsNotificationsOld  Kind = 0x30
	KindIncludeMutedOld          Kind = 0x31
	KindMegagroupSizeMaxOld      Kind = 0x32
	KindDownloadPathOld          Kind = 0x33
	KindAutoDownloadOld          Kind = 0x34
	KindSavedGifsLimitOld        Kind = 0x35
	KindShowingSavedGifsOld      Kind = 0x36
	KindAutoPlayOld              Kind = 0x37
	KindAdaptiveForWideOld       Kind = 0x38
	KindHiddenPinnedMessagesOld  Kind = 0x39
	KindRecentEmojiOld           Kind = 0x3a
	KindEmojiVariantsOld         Kind = 0x3b
	KindDialogsModeOld           Kind = 0x40
	KindModerateModeOld          Kind = 0x41
	KindVideoVolumeOld           Kind = 0x42
	KindStickersRecentLimitOld   Kind = 0x43
	KindNativeNotificationsOld   Kind = 0x44
	KindNotificationsCountOld    Kind = 0x45
	KindNotificationsCornerOld   Kind = 0x46
	KindThemeKeyOld              Kind = 0x47
	KindDialogsWidthRatioOld     Kind = 0x48
	KindUseExternalVideoPlayer   Kind = 0x49
	KindDcOptionsOld             Kind = 0x4a
	KindMtpAuthorization         Kind = 0x4b
	KindLastSeenWarningSeenOld   Kind = 0x4c
	KindSessionSettings          Kind = 0x4d
	KindLangPackKey              Kind = 0x4e
	KindConnectionTypeOld        Kind = 0x4f
	KindStickersFavedLimitOld    Kind = 0x50
	KindSuggestStickersByEmoji   Kind = 0x51
	KindSuggestEmojiOld          Kind = 0x52
	KindTxtDomainStringOldOld    Kind = 0x53
	KindThemeKey                 Kind = 0x54
	KindTileBackground           Kind = 0x55
	KindCacheSettingsOld         Kind = 0x56
	KindAnimationsDisabled       Kind = 0x57
	KindScalePercent             Kind = 0x58
	KindPlaybackSpeedOld         Kind = 0x59
	KindLanguagesKey             Kind = 0x5a
	KindCallSettingsOld          Kind = 0x5b
	KindCacheSettings            Kind = 0x5c
	KindTxtDomainStringOld       Kind = 0x5d
	KindApplicationSettings      Kind = 0x5e
	KindDialogsFiltersOld        Kind = 0x5f
	KindFallbackProductionConfig Kind = 0x60
	KindBackgroundKey            Kind = 0x61

	// Pre-magic storage generation markers. Out of scope; rejected.
	KindEncryptedWithSalt Kind = 333
	KindEncrypted         Kind = 444
	KindVersion           Kind = 666
)

var kindNames = map[Kind]string{
	KindKey:                      "Key",
	KindUser:                     "User",
	KindDcOptionOldOld:           "DcOptionOldOld",
	KindChatSizeMaxOld:           "ChatSizeMaxOld",
	KindMutePeerOld:              "MutePeerOld",
	KindSendKeyOld:               "SendKeyOld",
	KindAutoStart:                "AutoStart",
	KindStartMinimized:           "StartMinimized",
	KindSoundFlashBounceNotify:   "SoundFlashBounceNotifyOld",
	KindWorkModeOld:              "WorkModeOld",
	KindSeenTrayTooltip:          "SeenTrayTooltip",
	KindDesktopNotifyOld:         "DesktopNotifyOld",
	KindAutoUpdate:               "AutoUpdate",
	KindLastUpdateCheck:          "LastUpdateCheck",
	KindWindowPositionOld:        "WindowPositionOld",
	KindConnectionTypeOldOld:     "ConnectionTypeOldOld",
	KindDefaultAttach:            "DefaultAttach",
	KindCatsAndDogsOld:           "CatsAndDogsOld",
	KindReplaceEmojiOld:          "ReplaceEmojiOld",
	KindAskDownloadPathOld:       "AskDownloadPathOld",
	KindDownloadPathOldOld:       "DownloadPathOldOld",
	KindScaleOld:                 "ScaleOld",
	KindEmojiTabOld:              "EmojiTabOld",
	KindRecentEmojiOldOldOld:     "RecentEmojiOldOldOld",
	KindLoggedPhoneNumberOld:     "LoggedPhoneNumberOld",
	KindMutedPeersOld:            "MutedPeersOld",
	KindNotifyViewOld:            "NotifyViewOld",
	KindSendToMenu:               "SendToMenu",
	KindCompressPastedImageOld:   "CompressPastedImageOld",
	KindLangOld:                  "LangOld",
	KindLangFileOld:              "LangFileOld",
	KindTileBackgroundOld:        "TileBackgroundOld",
	KindAutoLockOld:              "AutoLockOld",
	KindDialogLastPath:           "DialogLastPath",
	KindRecentEmojiOldOld:        "RecentEmojiOldOld",
	KindEmojiVariantsOldOld:      "EmojiVariantsOldOld",
	KindRecentStickers:           "RecentStickers",
	KindDcOptionOld:              "DcOptionOld",
	KindTryIPv6Old:               "TryIPv6Old",
	KindSongVolumeOld:            "SongVolumeOld",
	KindWindowsNotificationsOld:  "WindowsNotificationsOld",
	KindIncludeMutedOld:          "IncludeMutedOld",
	KindMegagroupSizeMaxOld:      "MegagroupSizeMaxOld",
	KindDownloadPathOld:          "DownloadPathOld",
	KindAutoDownloadOld:          "AutoDownloadOld",
	KindSavedGifsLimitOld:        "SavedGifsLimitOld",
	KindShowingSavedGifsOld:      "ShowingSavedGifsOld",
	KindAutoPlayOld:              "AutoPlayOld",
	KindAdaptiveForWideOld:       "AdaptiveForWideOld",
	KindHiddenPinnedMessagesOld:  "HiddenPinnedMessagesOld",
	KindRecentEmojiOld:           "RecentEmojiOld",
	KindEmojiVariantsOld:         "EmojiVariantsOld",
	KindDialogsModeOld:           "DialogsModeOld",
	KindModerateModeOld:          "ModerateModeOld",
	KindVideoVolumeOld:           "VideoVolumeOld",
	KindStickersRecentLimitOld:   "StickersRecentLimitOld",
	KindNativeNotificationsOld:   "NativeNotificationsOld",
	KindNotificationsCountOld:    "NotificationsCountOld",
	KindNotificationsCornerOld:   "NotificationsCornerOld",
	KindThemeKeyOld:              "ThemeKeyOld",
	KindDialogsWidthRatioOld:     "DialogsWidthRatioOld",
	KindUseExternalVideoPlayer:   "UseExternalVideoPlayer",
	KindDcOptionsOld:             "DcOptionsOld",
	KindMtpAuthorization:         "MtpAuthorization",
	KindLastSeenWarningSeenOld:   "LastSeenWarningSeenOld",
	KindSessionSettings:          "SessionSettings",
	KindLangPackKey:              "LangPackKey",
	KindConnectionTypeOld:        "ConnectionTypeOld",
	KindStickersFavedLimitOld:    "StickersFavedLimitOld",
	KindSuggestStickersByEmoji:   "SuggestStickersByEmojiOld",
	KindSuggestEmojiOld:          "SuggestEmojiOld",
	KindTxtDomainStringOldOld:    "TxtDomainStringOldOld",
	KindThemeKey:                 "ThemeKey",
	KindTileBackground:           "TileBackground",
	KindCacheSettingsOld:         "CacheSettingsOld",
	KindAnimationsDisabled:       "AnimationsDisabled",
	KindScalePercent:             "ScalePercent",
	KindPlaybackSpeedOld:         "PlaybackSpeedOld",
	KindLanguagesKey:             "LanguagesKey",
	KindCallSettingsOld:          "CallSettingsOld",
	KindCacheSettings:            "CacheSettings",
	KindTxtDomainStringOld:       "TxtDomainStringOld",
	KindApplicationSettings:      "ApplicationSettings",
	KindDialogsFiltersOld:        "DialogsFiltersOld",
	KindFallbackProductionConfig: "FallbackProductionConfig",
	KindBackgroundKey:            "BackgroundKey",
	KindEncryptedWithSalt:        "EncryptedWithSalt",
	KindEncrypted:                "Encrypted",
	KindVersion:                  "Version",
}

// String returns the block identifier name, or UNKNOWN for tags outside
// the closed set.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

// known reports whether the tag is inside the closed set.
func (k Kind) known() bool {
	_, ok := kindNames[k]
	return ok
}
