package compiler

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// controlKeywords are structural or style switches consumed by the layout
// and DOM collaborators. They are stored on the node, never stepped.
var controlKeywords = map[string]bool{
	"id":                    true,
	"otype":                 true,
	"element":               true,
	"baseElement":           true,
	"sourceDom":             true,
	"domHolder":             true,
	"domParent":             true,
	"canHaveDom":            true,
	"canHandleEvents":       true,
	"canDeleteDom":          true,
	"isInFlow":              true,
	"excludeXYCalc":         true,
	"excludeStyling":        true,
	"defaultStyling":        true,
	"containerOverflowMode": true,
	"itemOverflowMode":      true,
}

// propertyVocabulary lists property names the engine and its collaborators
// understand. Keys from this set count toward the "produces children" score.
var propertyVocabulary = map[string]bool{
	"x": true, "y": true, "z": true,
	"width": true, "height": true,
	"left": true, "top": true, "right": true, "bottom": true,
	"topMargin": true, "leftMargin": true, "bottomMargin": true, "rightMargin": true,
	"opacity": true, "scale": true, "scaleX": true, "scaleY": true,
	"rotate": true, "rotateX": true, "rotateY": true, "rotateZ": true,
	"skewX": true, "skewY": true, "translateX": true, "translateY": true,
	"zIndex": true, "display": true, "position": true, "visibility": true,
	"overflow": true, "cursor": true, "transform": true,
	"background": true, "backgroundColor": true, "color": true,
	"border": true, "borderRadius": true, "boxShadow": true,
	"padding": true, "margin": true,
	"fontSize": true, "fontWeight": true, "fontFamily": true,
	"lineHeight": true, "letterSpacing": true, "textAlign": true,
	"html": true, "text": true, "textOnly": true, "style": true, "css": true,
	"children": true, "fetch": true, "fetchImage": true,
}

// events maps event directive names to the event key handed to the
// EventSource collaborator.
var events = map[string]string{
	"onClick":       "click",
	"onEnter":       "enter",
	"onLeave":       "leave",
	"onFocus":       "focus",
	"onBlur":        "blur",
	"onKey":         "key",
	"onScroll":      "scroll",
	"onScrollTop":   "scrollTop",
	"onScrollLeft":  "scrollLeft",
	"onSwipe":       "swipe",
	"onResize":      "resize",
	"onTouchStart":  "touchStart",
	"onTouchEnd":    "touchEnd",
	"onPointerDown": "pointerDown",
	"onPointerUp":   "pointerUp",
	"onVisible":     "visible",
}

// Lifecycle callback keys recognized inside parameter objects.
const (
	keyOnValueChange = "onValueChange"
	keyOnStepsEnd    = "onStepsEnd"
	keyOnStep        = "onStep"
	keyOnEnd         = "onEnd"
	keyOnSuccess     = "onSuccess"
	keyOnError       = "onError"
)

// Node-level hook names.
const (
	HookImperativeStep = "onImperativeStep"
	HookImperativeEnd  = "onImperativeEnd"
)

// stepEndPattern matches on<Name>Step and on<Name>End.
var stepEndPattern = regexp.MustCompile(`^on([A-Z]\w*?)(Step|End)$`)

// Parameter object keys.
const (
	keyValue        = "value"
	keySteps        = "steps"
	keyInterval     = "interval"
	keyCycles       = "cycles"
	keyEasing       = "easing"
	keyEnabledOn    = "enabledOn"
	keyLoop         = "loop"
	keyDeepEquality = "deepEquality"
	keyInitialValue = "initialValue"
	keyList         = "list"
	keyExpr         = "expr"
	keyFetch        = "fetch"
	keyFetchImage   = "fetchImage"
	keyChildren     = "children"
)

// IsControl reports whether name is a structural keyword.
func IsControl(name string) bool {
	return controlKeywords[name]
}

// EventOf returns the event key for an event directive name.
func EventOf(name string) (string, bool) {
	ev, ok := events[name]
	return ev, ok
}

// IsStepEndCallback reports whether key is on<Name>Step or on<Name>End,
// returning the lower-cased directive name and the callback kind.
func IsStepEndCallback(key string) (target, kind string, ok bool) {
	m := stepEndPattern.FindStringSubmatch(key)
	if m == nil {
		return "", "", false
	}
	return lowerFirst(m[1]), m[2], true
}

// isCallbackKey reports whether key names a lifecycle callback.
func isCallbackKey(key string) bool {
	switch key {
	case keyOnValueChange, keyOnStepsEnd, keyOnStep, keyOnEnd, keyOnSuccess, keyOnError:
		return true
	}
	_, _, ok := IsStepEndCallback(key)
	return ok
}

// isDirectiveShaped reports whether an object key looks like a directive of
// a child node rather than a field of a parameter object.
func isDirectiveShaped(key string) bool {
	if strings.HasSuffix(key, "$") {
		return true
	}
	base := parseName(key).Name
	if propertyVocabulary[base] || controlKeywords[base] {
		return true
	}
	_, isEvent := events[base]
	return isEvent
}

// StepEndHookName returns the node-level hook name for a directive.
func StepEndHookName(name, kind string) string {
	return "on" + upperFirst(name) + kind
}

func lowerFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToLower(r)) + s[size:]
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
