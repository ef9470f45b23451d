package annotate

// frameAnnotationPrompt steers the vision model toward the structured
// annotation the assembly stage expects. Unknown extra keys are preserved
// downstream, so the prompt lists the required core fields only.
const frameAnnotationPrompt = `You are annotating a single frame from a software walkthrough video.
Respond with JSON only, no prose, using this shape:
{
  "description": "one or two sentences describing what is happening on screen",
  "ui_elements": ["visible buttons, menus, dialogs, or panels"],
  "visible_text": "significant on-screen text, verbatim",
  "activity": "short label for the user action in progress"
}
Describe only what is visible. Do not speculate about intent beyond the frame.`
