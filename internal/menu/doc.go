// Package menu renders the option list shown beneath a help topic.
//
// Options are numbered from 1 in the order Render returns them: the topic's
// children first, then navigation, then admin entries.
//
//	1. Setup
//	2. About
//	3. back
//	4. home
//	5. edit title      (admin only)
//	6. edit body       (admin only)
//	7. add child       (admin only)
//	8. delete node     (admin only, never at the root)
package menu
